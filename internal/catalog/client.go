// Package catalog talks to the TMDB v3 API.
//
// Every request goes through Client.Request, which memoises response bodies by
// the exact endpoint string. Credentials and language are appended at send
// time and never become part of the cache key.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/glefebvre/cinefinder/internal/cache"
	"github.com/glefebvre/cinefinder/internal/circuitbreaker"
	"github.com/glefebvre/cinefinder/internal/config"
	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/metrics"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p"
	defaultTimeout      = 10 * time.Second
	maxBodyBytes        = 8 << 20
)

// Config holds catalog client configuration
type Config struct {
	APIKey            string
	BaseURL           string
	ImageBaseURL      string
	Language          string // e.g. "pt-BR"
	Region            string // watch-provider region, e.g. "BR"
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables client-side throttling
	Burst             int
}

// ConfigFrom maps the application configuration onto a client Config
func ConfigFrom(c *config.Config) Config {
	return Config{
		APIKey:            c.TMDB.APIKey,
		BaseURL:           c.TMDB.BaseURL,
		ImageBaseURL:      c.TMDB.ImageBaseURL,
		Language:          c.TMDB.Language,
		Region:            c.TMDB.Region,
		Timeout:           c.TMDB.Timeout(),
		RequestsPerSecond: c.TMDB.RequestsPerSecond,
		Burst:             c.TMDB.Burst,
	}
}

// Client handles catalog API interactions
type Client struct {
	cfg        Config
	httpClient *http.Client
	store      cache.Store
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	inflight   singleflight.Group
	logger     *logger.FieldLogger
}

// Option customises a Client
type Option func(*Client)

// WithCache replaces the default in-memory response store
func WithCache(store cache.Store) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger sets the logger used for request failures
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l.Component("catalog") }
}

// NewClient creates a new catalog client. Without options it memoises
// responses in memory for the lifetime of the client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = defaultImageBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Language == "" {
		cfg.Language = "pt-BR"
	}
	if cfg.Region == "" {
		cfg.Region = "BR"
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		store:      cache.NewMemory(),
		logger:     logger.AppLogger().Component("catalog"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = circuitbreaker.New(circuitbreaker.Config{
		Name:                "tmdb",
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
		IsSuccessful:        countsAsHealthy,
		OnStateChange:       c.onBreakerChange,
	})

	return c
}

// Region returns the configured watch-provider region
func (c *Client) Region() string {
	return c.cfg.Region
}

// Request fetches endpoint (path plus query, without credentials) and returns
// the raw JSON body. Identical endpoint strings are served from the cache.
// Non-2xx answers fail with CATALOG_UNAVAILABLE, transport failures with
// CATALOG_UNREACHABLE. Nothing is retried here.
//
// Concurrent callers of one endpoint share a single fetch. That fetch is not
// tied to any caller's cancellation, only to the HTTP client timeout, so a
// caller that gives up returns early without failing the others.
func (c *Client) Request(ctx context.Context, endpoint string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.CatalogUnreachable(endpoint, err)
	}
	if body, ok := c.cached(ctx, endpoint, true); ok {
		return body, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(endpoint, func() (interface{}, error) {
		// a previous flight may have filled the cache since the first lookup
		if body, ok := c.cached(shared, endpoint, false); ok {
			return body, nil
		}
		body, err := c.fetch(shared, endpoint)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(shared, endpoint, body); err != nil {
			c.logger.WithFields(map[string]interface{}{
				"endpoint": endpoint,
				"backend":  c.store.Name(),
			}).WarnContext(shared, "failed to cache catalog response")
		}
		return body, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, apperrors.CatalogUnreachable(endpoint, ctx.Err())
	}
}

// cached looks endpoint up in the store. record controls whether the lookup
// counts towards the cache hit/miss metrics.
func (c *Client) cached(ctx context.Context, endpoint string, record bool) ([]byte, bool) {
	body, ok, err := c.store.Get(ctx, endpoint)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"endpoint": endpoint,
			"backend":  c.store.Name(),
		}).ErrorContext(ctx, "cache lookup failed", err)
		return nil, false
	}
	if record {
		metrics.RecordCacheLookup(c.store.Name(), ok)
	}
	return body, ok
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperrors.CatalogUnreachable(endpoint, err)
		}
	}

	start := time.Now()
	var body []byte
	err := c.breaker.Execute(func() error {
		var doErr error
		body, doErr = c.do(ctx, endpoint)
		return doErr
	})

	switch {
	case err == nil:
		metrics.RecordCatalogRequest(endpoint, "ok", time.Since(start))
		return body, nil
	case errors.Is(err, circuitbreaker.ErrOpenState), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		metrics.RecordCatalogRequest(endpoint, "breaker_open", time.Since(start))
		return nil, apperrors.CatalogUnreachable(endpoint, err)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeCatalogUnavailable {
		status, _ := appErr.Context["status"].(int)
		metrics.RecordCatalogRequest(endpoint, metrics.StatusOutcome(status), time.Since(start))
	} else {
		metrics.RecordCatalogRequest(endpoint, "unreachable", time.Since(start))
	}

	c.logger.WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"code":     string(apperrors.GetErrorCode(err)),
	}).WarnContext(ctx, "catalog request failed")
	return nil, err
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(endpoint), nil)
	if err != nil {
		return nil, apperrors.CatalogUnreachable(endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.cfg.Language)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.CatalogUnreachable(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, apperrors.CatalogUnavailable(resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.CatalogUnreachable(endpoint, err)
	}
	return body, nil
}

// buildURL appends credentials and language to endpoint
func (c *Client) buildURL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("language", c.cfg.Language)
	return fmt.Sprintf("%s%s%s%s", c.cfg.BaseURL, endpoint, sep, params.Encode())
}

func (c *Client) onBreakerChange(name string, from, to circuitbreaker.State) {
	metrics.SetBreakerState(name, int(to))
	c.logger.WithFields(map[string]interface{}{
		"breaker": name,
		"from":    from.String(),
		"to":      to.String(),
	}).Warn("catalog circuit breaker changed state")
}

// countsAsHealthy keeps client errors (404, 429, ...) and abandoned requests
// from tripping the breaker. Caller deadlines never reach the transport since
// shared fetches run detached; a deadline seen here is the HTTP client timeout
// and counts as a failure.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeCatalogUnavailable {
		status, _ := appErr.Context["status"].(int)
		return status < 500
	}
	return false
}
