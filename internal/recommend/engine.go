// Package recommend scores discovery candidates against a taste profile and
// returns a small, diversified set per lens.
package recommend

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glefebvre/cinefinder/internal/catalog"
	"github.com/glefebvre/cinefinder/internal/config"
	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/metrics"
	"github.com/glefebvre/cinefinder/internal/models"
)

// Catalog is the subset of the catalog client the engine needs
type Catalog interface {
	Discover(ctx context.Context, q catalog.DiscoverQuery) (*catalog.Page[models.CatalogItem], error)
}

// Enricher turns raw catalog items into enriched records, never failing
type Enricher interface {
	EnrichAll(ctx context.Context, items []models.CatalogItem, limit int) []models.EnrichedMovie
}

// Config holds recommendation limits
type Config struct {
	MaxResults     int
	DiscoveryPages int
	TopGenres      int
	MinVoteCount   int
	MaxConcurrency int
}

// DefaultConfig returns the standard limits
func DefaultConfig() Config {
	return Config{
		MaxResults:     8,
		DiscoveryPages: 3,
		TopGenres:      3,
		MinVoteCount:   50,
		MaxConcurrency: 8,
	}
}

// ConfigFrom applies the recommend section of the application config
func ConfigFrom(c *config.Config) Config {
	cfg := DefaultConfig()
	if c.Recommend.MaxResults > 0 {
		cfg.MaxResults = c.Recommend.MaxResults
	}
	if c.Recommend.DiscoveryPages > 0 {
		cfg.DiscoveryPages = c.Recommend.DiscoveryPages
	}
	if c.Search.MaxConcurrency > 0 {
		cfg.MaxConcurrency = c.Search.MaxConcurrency
	}
	return cfg
}

// Strategy is the discovery window and order of a lens
type Strategy struct {
	YearStart int
	YearEnd   int
	SortKey   models.SortKey
}

// StrategyFor returns the discovery strategy of lens at now
func StrategyFor(lens models.Lens, now time.Time) Strategy {
	year := now.Year()
	switch lens {
	case models.LensQuality:
		return Strategy{YearStart: 2010, YearEnd: year, SortKey: models.SortVoteAverageDesc}
	case models.LensTrending:
		return Strategy{YearStart: year - 1, YearEnd: year, SortKey: models.SortPopularityDesc}
	default:
		return Strategy{YearStart: year - 15, YearEnd: year, SortKey: models.SortVoteAverageDesc}
	}
}

// Engine produces recommendations
type Engine struct {
	catalog  Catalog
	enricher Enricher
	cfg      Config
	now      func() time.Time
	logger   *logger.FieldLogger
}

// Option customises an Engine
type Option func(*Engine)

// WithConfig replaces the default limits
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithClock fixes the engine's notion of now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.logger = l.Component("recommend") }
}

// New creates an Engine
func New(c Catalog, enr Enricher, opts ...Option) *Engine {
	e := &Engine{
		catalog:  c,
		enricher: enr,
		cfg:      DefaultConfig(),
		now:      time.Now,
		logger:   logger.AppLogger().Component("recommend"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend builds a profile from history, sources candidates for lens and
// returns at most MaxResults diversified picks. Movies in history or exclude
// are never returned. An error is returned for an unknown lens or when every
// discovery page failed.
func (e *Engine) Recommend(ctx context.Context, history []models.EnrichedMovie, lens models.Lens, exclude map[int]struct{}) ([]models.EnrichedMovie, error) {
	lens, err := models.ParseLens(string(lens))
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	start := time.Now()
	now := e.now()
	profile := BuildProfile(history, now)

	items, err := e.candidates(ctx, profile, lens, now)
	if err != nil {
		return nil, err
	}
	pool := e.enricher.EnrichAll(ctx, items, e.cfg.MaxConcurrency)
	pool = filterCandidates(pool, history, exclude)

	ranked := Rank(pool, profile, lens, now)
	recs := Diversify(ranked, e.cfg.MaxResults)

	metrics.RecordRecommendation(string(lens), len(recs), time.Since(start))
	e.logger.WithFields(map[string]interface{}{
		"lens":            string(lens),
		"history":         len(history),
		"default_profile": profile.Default,
		"candidates":      len(pool),
		"ranked":          len(ranked),
		"served":          len(recs),
	}).DebugContext(ctx, "recommendations computed")

	return recs, nil
}

// Rank scores pool, drops candidates under MinScore and sorts the rest by
// descending score. Equal scores keep pool order.
func Rank(pool []models.EnrichedMovie, profile Profile, lens models.Lens, now time.Time) []Scored {
	scorer := NewScorer(profile, lens, pool, now)

	ranked := make([]Scored, 0, len(pool))
	for i := range pool {
		score := scorer.Score(&pool[i])
		if score < MinScore {
			continue
		}
		ranked = append(ranked, Scored{Movie: pool[i], Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

func (e *Engine) candidates(ctx context.Context, profile Profile, lens models.Lens, now time.Time) ([]models.CatalogItem, error) {
	strategy := StrategyFor(lens, now)
	genres := profile.TopGenres(e.cfg.TopGenres)

	pages := make([][]models.CatalogItem, e.cfg.DiscoveryPages)
	errs := make([]error, e.cfg.DiscoveryPages)

	var g errgroup.Group
	for i := range pages {
		g.Go(func() error {
			page, err := e.catalog.Discover(ctx, catalog.DiscoverQuery{
				GenreIDs:     genres,
				AnyGenre:     true,
				YearStart:    strategy.YearStart,
				YearEnd:      strategy.YearEnd,
				SortKey:      strategy.SortKey,
				MinVoteCount: e.cfg.MinVoteCount,
				Page:         i + 1,
			})
			if err != nil {
				errs[i] = err
				return nil
			}
			pages[i] = page.Results
			return nil
		})
	}
	g.Wait()

	var firstErr error
	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
		e.logger.WithFields(map[string]interface{}{
			"lens":  string(lens),
			"page":  i + 1,
			"error": err.Error(),
		}).WarnContext(ctx, "discovery page failed")
	}
	if len(errs) > 0 && failed == len(errs) {
		return nil, firstErr
	}

	seen := make(map[int]struct{})
	var items []models.CatalogItem
	for _, page := range pages {
		for _, item := range page {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
		}
	}
	return items, nil
}

// filterCandidates drops watched, excluded, adult and genre-less candidates
func filterCandidates(pool, history []models.EnrichedMovie, exclude map[int]struct{}) []models.EnrichedMovie {
	watched := make(map[int]struct{}, len(history))
	for _, m := range history {
		watched[m.ID] = struct{}{}
	}

	out := make([]models.EnrichedMovie, 0, len(pool))
	for _, m := range pool {
		if _, ok := watched[m.ID]; ok {
			continue
		}
		if _, ok := exclude[m.ID]; ok {
			continue
		}
		if m.Adult || len(m.GenreIDList()) == 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Session remembers what each lens surfaced so another lens does not repeat
// it. Calls on one session are serialised.
type Session struct {
	engine *Engine

	mu       sync.Mutex
	surfaced map[models.Lens]map[int]struct{}
}

// NewSession creates an empty session
func NewSession(engine *Engine) *Session {
	return &Session{
		engine:   engine,
		surfaced: make(map[models.Lens]map[int]struct{}),
	}
}

// Recommend excludes everything other lenses surfaced in this session, then
// records the returned ids as this lens's set, replacing the previous one
func (s *Session) Recommend(ctx context.Context, history []models.EnrichedMovie, lens models.Lens) ([]models.EnrichedMovie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lens, err := models.ParseLens(string(lens))
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	exclude := make(map[int]struct{})
	for other, ids := range s.surfaced {
		if other == lens {
			continue
		}
		for id := range ids {
			exclude[id] = struct{}{}
		}
	}

	recs, err := s.engine.Recommend(ctx, history, lens, exclude)
	if err != nil {
		return nil, err
	}

	ids := make(map[int]struct{}, len(recs))
	for _, m := range recs {
		ids[m.ID] = struct{}{}
	}
	s.surfaced[lens] = ids
	return recs, nil
}

// Surfaced returns the ids last recommended under lens, ascending
func (s *Session) Surfaced(lens models.Lens) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.surfaced[lens]))
	for id := range s.surfaced[lens] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Reset forgets every lens's surfaced set
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surfaced = make(map[models.Lens]map[int]struct{})
}
