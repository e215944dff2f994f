// Package enricher merges catalog metadata, credits and watch availability into
// a single EnrichedMovie, degrading to a best-effort record when lookups fail.
package enricher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glefebvre/cinefinder/internal/catalog"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/metrics"
	"github.com/glefebvre/cinefinder/internal/models"
	"github.com/glefebvre/cinefinder/internal/retry"
)

const (
	maxCast = 5

	TierSubscription = "Incluído"
	TierRental       = "Aluguel"
	TierPurchase     = "Compra"
)

// Catalog is the subset of the catalog client the enricher needs
type Catalog interface {
	Movie(ctx context.Context, id int) (*catalog.MovieDetails, error)
	Credits(ctx context.Context, id int) (*catalog.Credits, error)
	WatchProviders(ctx context.Context, id int) (*catalog.WatchProviders, error)
	Region() string
}

// Enricher builds EnrichedMovie records
type Enricher struct {
	catalog     Catalog
	genres      *GenreRegistry
	retryConfig retry.Config
	logger      *logger.FieldLogger
}

// Option customises an Enricher
type Option func(*Enricher)

// WithRetryAttempts sets how many times a rate-limited enrichment is tried
func WithRetryAttempts(attempts int) Option {
	return func(e *Enricher) { e.retryConfig = retry.RateLimitConfig(attempts) }
}

// WithRetryConfig replaces the retry policy used by EnrichOrFallback
func WithRetryConfig(cfg retry.Config) Option {
	return func(e *Enricher) { e.retryConfig = cfg }
}

// WithLogger sets the logger used for degraded records
func WithLogger(l *logger.Logger) Option {
	return func(e *Enricher) { e.logger = l.Component("enricher") }
}

// New creates an Enricher
func New(c Catalog, genres *GenreRegistry, opts ...Option) *Enricher {
	e := &Enricher{
		catalog:     c,
		genres:      genres,
		retryConfig: retry.RateLimitConfig(2),
		logger:      logger.AppLogger().Component("enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Genres returns the registry used to resolve genre ids
func (e *Enricher) Genres() *GenreRegistry {
	return e.genres
}

// Enrich fetches details, credits and providers for id concurrently. All three
// lookups run to completion; if any failed the first failure is returned.
// Streaming availability is read for the region carried by catalog.WithRegion,
// defaulting to the catalog's configured region.
func (e *Enricher) Enrich(ctx context.Context, id int) (*models.EnrichedMovie, error) {
	var (
		details   *catalog.MovieDetails
		credits   *catalog.Credits
		providers *catalog.WatchProviders
		errs      [3]error
	)

	var g errgroup.Group
	g.Go(func() error {
		details, errs[0] = e.catalog.Movie(ctx, id)
		return nil
	})
	g.Go(func() error {
		credits, errs[1] = e.catalog.Credits(ctx, id)
		return nil
	})
	g.Go(func() error {
		providers, errs[2] = e.catalog.WatchProviders(ctx, id)
		return nil
	})
	g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	movie := &models.EnrichedMovie{
		CatalogItem:       details.CatalogItem,
		Director:          Director(credits.Crew),
		Cast:              Cast(credits.Cast),
		StreamingServices: Streaming(providers.Results[catalog.RegionFrom(ctx, e.catalog.Region())]),
		Runtime:           details.Runtime,
		Budget:            details.Budget,
		Revenue:           details.Revenue,
	}
	movie.Genres = dedupeGenres(details.Genres)
	movie.GenreIDs = genreIDs(movie.Genres)

	metrics.RecordEnrichment(false)
	return movie, nil
}

// Fallback builds a degraded record from the raw item. Genre ids are resolved
// through the registry; when the registry is unavailable the ids are kept
// without names.
func (e *Enricher) Fallback(ctx context.Context, item models.CatalogItem) *models.EnrichedMovie {
	movie := &models.EnrichedMovie{
		CatalogItem:       item,
		Director:          models.NotInformed,
		Cast:              models.NotInformed,
		StreamingServices: models.NotAvailable,
		Degraded:          true,
	}

	if len(item.Genres) > 0 {
		movie.Genres = dedupeGenres(item.Genres)
	} else {
		genres, err := e.genres.Resolve(ctx, item.GenreIDs)
		if err != nil {
			genres = make([]models.Genre, 0, len(item.GenreIDs))
			for _, id := range item.GenreIDs {
				genres = append(genres, models.Genre{ID: id})
			}
			genres = dedupeGenres(genres)
		}
		movie.Genres = genres
	}
	movie.GenreIDs = genreIDs(movie.Genres)

	metrics.RecordEnrichment(true)
	return movie
}

// EnrichOrFallback enriches item, retrying rate-limited lookups, and falls back
// to a degraded record if enrichment still fails
func (e *Enricher) EnrichOrFallback(ctx context.Context, item models.CatalogItem) models.EnrichedMovie {
	cfg := e.retryConfig
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		e.logger.WithFields(map[string]interface{}{
			"movie_id": item.ID,
			"attempt":  attempt,
			"wait_ms":  wait.Milliseconds(),
		}).DebugContext(ctx, "catalog rate limited, retrying enrichment")
	}

	movie, err := retry.DoWithResult(ctx, cfg, func() (*models.EnrichedMovie, error) {
		return e.Enrich(ctx, item.ID)
	}, retry.RateLimited)
	if err == nil {
		return *movie
	}

	e.logger.WithFields(map[string]interface{}{
		"movie_id": item.ID,
		"title":    item.Title,
		"error":    err.Error(),
	}).WarnContext(ctx, "enrichment failed, using degraded record")
	return *e.Fallback(ctx, item)
}

// EnrichAll enriches items with at most limit lookups in flight. Output order
// matches input order and every item yields a record.
func (e *Enricher) EnrichAll(ctx context.Context, items []models.CatalogItem, limit int) []models.EnrichedMovie {
	out := make([]models.EnrichedMovie, len(items))
	if len(items) == 0 {
		return out
	}
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			out[i] = e.EnrichOrFallback(ctx, item)
			return nil
		})
	}
	g.Wait()

	return out
}

// Hydrate enriches movie ids into history records, keeping input order. Ids
// the catalog could not resolve to a title are logged and dropped.
func (e *Enricher) Hydrate(ctx context.Context, ids []int, limit int) []models.EnrichedMovie {
	items := make([]models.CatalogItem, len(ids))
	for i, id := range ids {
		items[i] = models.CatalogItem{ID: id}
	}

	out := make([]models.EnrichedMovie, 0, len(ids))
	for _, m := range e.EnrichAll(ctx, items, limit) {
		if m.Degraded && m.Title == "" {
			e.logger.WithFields(map[string]interface{}{"movie_id": m.ID}).WarnContext(ctx, "history movie not found, skipping")
			continue
		}
		out = append(out, m)
	}
	return out
}

// Director returns the first crew member credited as "Director"
func Director(crew []catalog.CrewMember) string {
	for _, c := range crew {
		if c.Job == "Director" && strings.TrimSpace(c.Name) != "" {
			return c.Name
		}
	}
	return models.NotInformed
}

// Cast joins the names of the top-billed actors
func Cast(cast []catalog.CastMember) string {
	billed := make([]catalog.CastMember, 0, len(cast))
	for _, c := range cast {
		if strings.TrimSpace(c.Name) != "" {
			billed = append(billed, c)
		}
	}
	if len(billed) == 0 {
		return models.NotInformed
	}

	sort.SliceStable(billed, func(i, j int) bool { return billed[i].Order < billed[j].Order })
	if len(billed) > maxCast {
		billed = billed[:maxCast]
	}

	names := make([]string, len(billed))
	for i, c := range billed {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// Streaming lists providers as "Name (Tier)". A provider offered on several
// tiers is listed once, under subscription, then rental, then purchase.
func Streaming(rp catalog.RegionProviders) string {
	seen := make(map[string]struct{})
	var parts []string

	add := func(providers []catalog.Provider, tier string) {
		for _, p := range providers {
			name := strings.TrimSpace(p.ProviderName)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			parts = append(parts, fmt.Sprintf("%s (%s)", name, tier))
		}
	}
	add(rp.Flatrate, TierSubscription)
	add(rp.Rent, TierRental)
	add(rp.Buy, TierPurchase)

	if len(parts) == 0 {
		return models.NotAvailable
	}
	return strings.Join(parts, ", ")
}

func dedupeGenres(genres []models.Genre) []models.Genre {
	out := make([]models.Genre, 0, len(genres))
	seen := make(map[int]struct{}, len(genres))
	for _, g := range genres {
		if _, ok := seen[g.ID]; ok {
			continue
		}
		seen[g.ID] = struct{}{}
		out = append(out, g)
	}
	return out
}

func genreIDs(genres []models.Genre) []int {
	ids := make([]int, len(genres))
	for i, g := range genres {
		ids[i] = g.ID
	}
	return ids
}
