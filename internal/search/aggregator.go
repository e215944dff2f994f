// Package search fans free-text movie and director terms out to the catalog,
// merges the hits by identity and returns one filtered, sorted result set.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glefebvre/cinefinder/internal/catalog"
	"github.com/glefebvre/cinefinder/internal/config"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/metrics"
	"github.com/glefebvre/cinefinder/internal/models"
	"github.com/glefebvre/cinefinder/internal/normalizer"
	"github.com/glefebvre/cinefinder/internal/validation"
)

const directingDepartment = "Directing"

// Catalog is the subset of the catalog client the aggregator needs
type Catalog interface {
	SearchMovies(ctx context.Context, query string, page int) (*catalog.Page[models.CatalogItem], error)
	SearchPeople(ctx context.Context, query string) (*catalog.Page[catalog.Person], error)
	Discover(ctx context.Context, q catalog.DiscoverQuery) (*catalog.Page[models.CatalogItem], error)
}

// Enricher turns raw catalog items into enriched records, never failing
type Enricher interface {
	EnrichAll(ctx context.Context, items []models.CatalogItem, limit int) []models.EnrichedMovie
}

// Config holds aggregation limits
type Config struct {
	MaxConcurrency   int
	PerTermLimit     int
	PeoplePerTerm    int
	PerDirectorLimit int
	MaxResults       int

	DiscoveryPages int
	DiscoveryLimit int
	MinVoteCount   int
	MinVoteAverage float64
}

// DefaultConfig returns the standard limits
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:   8,
		PerTermLimit:     8,
		PeoplePerTerm:    2,
		PerDirectorLimit: 15,
		MaxResults:       50,
		DiscoveryPages:   2,
		DiscoveryLimit:   20,
		MinVoteCount:     50,
		MinVoteAverage:   5.0,
	}
}

// ConfigFrom applies the search section of the application config
func ConfigFrom(c *config.Config) Config {
	cfg := DefaultConfig()
	if c.Search.MaxConcurrency > 0 {
		cfg.MaxConcurrency = c.Search.MaxConcurrency
	}
	if c.Search.PerTermLimit > 0 {
		cfg.PerTermLimit = c.Search.PerTermLimit
	}
	if c.Search.PerDirectorLimit > 0 {
		cfg.PerDirectorLimit = c.Search.PerDirectorLimit
	}
	if c.Search.MaxResults > 0 {
		cfg.MaxResults = c.Search.MaxResults
	}
	return cfg
}

// Aggregator runs term searches
type Aggregator struct {
	catalog  Catalog
	enricher Enricher
	expander *normalizer.Expander
	cfg      Config
	logger   *logger.FieldLogger
}

// Option customises an Aggregator
type Option func(*Aggregator)

// WithConfig replaces the default limits
func WithConfig(cfg Config) Option {
	return func(a *Aggregator) { a.cfg = cfg }
}

// WithLogger sets the logger used for absorbed failures
func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) { a.logger = l.Component("search") }
}

// New creates an Aggregator
func New(c Catalog, e Enricher, opts ...Option) *Aggregator {
	a := &Aggregator{
		catalog:  c,
		enricher: e,
		expander: normalizer.NewExpander(normalizer.VariantTable),
		cfg:      DefaultConfig(),
		logger:   logger.AppLogger().Component("search"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cfg.MaxConcurrency < 1 {
		a.cfg.MaxConcurrency = 1
	}
	return a
}

// SearchByTerms searches every movie and director term, or runs a discovery
// query from filters when both lists are blank. Failures of single terms or
// items are logged and skipped; an error is returned only for invalid filters
// or when every catalog call made for the request failed.
func (a *Aggregator) SearchByTerms(ctx context.Context, movieTerms, directorTerms []string, filters models.SearchFilters) (*models.SearchResults, error) {
	if err := validation.ValidateFilters(filters); err != nil {
		return nil, err
	}

	ctx = catalog.WithRegion(ctx, filters.Region)
	start := time.Now()
	movieTerms = cleanTerms(movieTerms)
	directorTerms = cleanTerms(directorTerms)
	tracker := &callTracker{}

	mode := "terms"
	var found []models.EnrichedMovie
	if len(movieTerms) == 0 && len(directorTerms) == 0 {
		mode = "discover"
		found = a.discover(ctx, filters, tracker)
	} else {
		found = a.searchTerms(ctx, movieTerms, directorTerms, tracker)
	}

	if err := tracker.allFailed(); err != nil {
		a.logger.WithFields(map[string]interface{}{
			"calls": tracker.calls,
			"mode":  mode,
		}).ErrorContext(ctx, "every catalog call failed", err)
		return nil, err
	}

	movies := models.DedupeByID(found)
	movies = applyFilters(movies, filters)
	SortMovies(movies, filters.EffectiveSortKey())
	if len(movies) > a.cfg.MaxResults {
		movies = movies[:a.cfg.MaxResults]
	}

	metrics.RecordSearch(mode, len(movies), time.Since(start))
	a.logger.WithFields(map[string]interface{}{
		"mode":           mode,
		"movie_terms":    len(movieTerms),
		"director_terms": len(directorTerms),
		"results":        len(movies),
		"duration_ms":    time.Since(start).Milliseconds(),
	}).InfoContext(ctx, "search completed")

	return models.NewSearchResults(movies), nil
}

// searchTerms runs every term concurrently; results keep term order
func (a *Aggregator) searchTerms(ctx context.Context, movieTerms, directorTerms []string, tracker *callTracker) []models.EnrichedMovie {
	slots := make([][]models.EnrichedMovie, len(movieTerms)+len(directorTerms))

	var g errgroup.Group
	g.SetLimit(a.cfg.MaxConcurrency)
	for i, term := range movieTerms {
		g.Go(func() error {
			slots[i] = a.searchMovieTerm(ctx, term, tracker)
			return nil
		})
	}
	for i, term := range directorTerms {
		g.Go(func() error {
			slots[len(movieTerms)+i] = a.searchDirectorTerm(ctx, term, tracker)
			return nil
		})
	}
	g.Wait()

	var out []models.EnrichedMovie
	for _, s := range slots {
		out = append(out, s...)
	}
	return out
}

func (a *Aggregator) searchMovieTerm(ctx context.Context, term string, tracker *callTracker) []models.EnrichedMovie {
	forms := a.expander.Expand(term)
	pages := make([][]models.CatalogItem, len(forms))

	var g errgroup.Group
	for i, form := range forms {
		g.Go(func() error {
			page, err := a.catalog.SearchMovies(ctx, form, 1)
			tracker.record(err)
			if err != nil {
				a.logTermFailure(ctx, "movie", form, err)
				return nil
			}
			pages[i] = page.Results
			return nil
		})
	}
	g.Wait()

	items := mergeItems(pages, a.cfg.PerTermLimit)
	return a.enricher.EnrichAll(ctx, items, a.cfg.MaxConcurrency)
}

func (a *Aggregator) searchDirectorTerm(ctx context.Context, term string, tracker *callTracker) []models.EnrichedMovie {
	forms := a.expander.Expand(term)
	found := make([][]catalog.Person, len(forms))

	var g errgroup.Group
	for i, form := range forms {
		g.Go(func() error {
			page, err := a.catalog.SearchPeople(ctx, form)
			tracker.record(err)
			if err != nil {
				a.logTermFailure(ctx, "director", form, err)
				return nil
			}
			found[i] = page.Results
			return nil
		})
	}
	g.Wait()

	people := directors(found, a.cfg.PeoplePerTerm)
	works := make([][]models.EnrichedMovie, len(people))

	var pg errgroup.Group
	for i, person := range people {
		pg.Go(func() error {
			page, err := a.catalog.Discover(ctx, catalog.DiscoverQuery{
				WithCrew: person.ID,
				SortKey:  models.SortPopularityDesc,
				Page:     1,
			})
			tracker.record(err)
			if err != nil {
				a.logTermFailure(ctx, "director", person.Name, err)
				return nil
			}

			items := page.Results
			if len(items) > a.cfg.PerDirectorLimit {
				items = items[:a.cfg.PerDirectorLimit]
			}

			enriched := a.enricher.EnrichAll(ctx, items, a.cfg.MaxConcurrency)
			verified := make([]models.EnrichedMovie, 0, len(enriched))
			for _, m := range enriched {
				// crew discovery also returns producer and writer credits
				if m.HasKnownDirector() && normalizer.ContainsName(m.Director, term) {
					verified = append(verified, m)
				}
			}
			works[i] = verified
			return nil
		})
	}
	pg.Wait()

	var out []models.EnrichedMovie
	for _, w := range works {
		out = append(out, w...)
	}
	return out
}

// discover pages through a filter-only discovery query
func (a *Aggregator) discover(ctx context.Context, filters models.SearchFilters, tracker *callTracker) []models.EnrichedMovie {
	pages := make([][]models.CatalogItem, a.cfg.DiscoveryPages)

	var g errgroup.Group
	for i := range pages {
		g.Go(func() error {
			page, err := a.catalog.Discover(ctx, catalog.DiscoverQuery{
				GenreIDs:       filters.GenreIDs,
				YearStart:      filters.YearStart,
				YearEnd:        filters.YearEnd,
				SortKey:        filters.EffectiveSortKey(),
				MinVoteCount:   a.cfg.MinVoteCount,
				MinVoteAverage: a.cfg.MinVoteAverage,
				WatchRegion:    filters.Region,
				Page:           i + 1,
			})
			tracker.record(err)
			if err != nil {
				a.logTermFailure(ctx, "discover", "", err)
				return nil
			}
			pages[i] = page.Results
			return nil
		})
	}
	g.Wait()

	items := mergeItems(pages, a.cfg.DiscoveryLimit)
	return a.enricher.EnrichAll(ctx, items, a.cfg.MaxConcurrency)
}

func (a *Aggregator) logTermFailure(ctx context.Context, kind, term string, err error) {
	a.logger.WithFields(map[string]interface{}{
		"kind":  kind,
		"term":  term,
		"error": err.Error(),
	}).WarnContext(ctx, "catalog lookup failed, skipping")
}

// mergeItems concatenates pages, keeps the first occurrence of each id and
// stops at limit
func mergeItems(pages [][]models.CatalogItem, limit int) []models.CatalogItem {
	seen := make(map[int]struct{})
	var out []models.CatalogItem
	for _, page := range pages {
		for _, item := range page {
			if len(out) >= limit {
				return out
			}
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// directors keeps distinct people known for directing, at most limit
func directors(found [][]catalog.Person, limit int) []catalog.Person {
	seen := make(map[int]struct{})
	var out []catalog.Person
	for _, people := range found {
		for _, p := range people {
			if len(out) >= limit {
				return out
			}
			if p.KnownForDepartment != directingDepartment {
				continue
			}
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// applyFilters keeps movies with a matching genre and, when a year range is
// set, a parseable release year inside it
func applyFilters(movies []models.EnrichedMovie, f models.SearchFilters) []models.EnrichedMovie {
	out := make([]models.EnrichedMovie, 0, len(movies))
	for _, m := range movies {
		if len(f.GenreIDs) > 0 && !m.HasAnyGenre(f.GenreIDs) {
			continue
		}
		if f.HasYearRange() {
			year, ok := m.ReleaseYear()
			if !ok || !f.InYearRange(year) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// SortMovies orders movies by key in place. Ties keep their relative order.
func SortMovies(movies []models.EnrichedMovie, key models.SortKey) {
	var less func(a, b *models.EnrichedMovie) bool

	switch key {
	case models.SortPopularityAsc:
		less = func(a, b *models.EnrichedMovie) bool { return a.Popularity < b.Popularity }
	case models.SortReleaseDateDesc:
		less = func(a, b *models.EnrichedMovie) bool { return a.ReleaseTime().After(b.ReleaseTime()) }
	case models.SortReleaseDateAsc:
		less = func(a, b *models.EnrichedMovie) bool { return a.ReleaseTime().Before(b.ReleaseTime()) }
	case models.SortVoteAverageDesc:
		less = func(a, b *models.EnrichedMovie) bool { return a.VoteAverage > b.VoteAverage }
	case models.SortVoteAverageAsc:
		less = func(a, b *models.EnrichedMovie) bool { return a.VoteAverage < b.VoteAverage }
	case models.SortRevenueDesc:
		less = func(a, b *models.EnrichedMovie) bool { return a.Revenue > b.Revenue }
	default:
		less = func(a, b *models.EnrichedMovie) bool { return a.Popularity > b.Popularity }
	}

	sort.SliceStable(movies, func(i, j int) bool { return less(&movies[i], &movies[j]) })
}

// callTracker counts primary catalog calls and remembers the first failure
type callTracker struct {
	mu       sync.Mutex
	calls    int
	failures int
	firstErr error
}

func (t *callTracker) record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if err != nil {
		t.failures++
		if t.firstErr == nil {
			t.firstErr = err
		}
	}
}

// allFailed returns the first error when at least one call was made and none succeeded
func (t *callTracker) allFailed() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls > 0 && t.failures == t.calls {
		return t.firstErr
	}
	return nil
}
