// Package savedlist persists the user's saved movies and exposes them as
// recommendation history.
package savedlist

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/metrics"
	"github.com/glefebvre/cinefinder/internal/models"
)

// Details hydrates a movie id into a full record
type Details interface {
	Enrich(ctx context.Context, id int) (*models.EnrichedMovie, error)
}

// GenreResolver maps genre ids to named genres
type GenreResolver interface {
	Resolve(ctx context.Context, ids []int) ([]models.Genre, error)
}

// ChangeKind names a mutation of the saved list
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeRemoved   ChangeKind = "removed"
	ChangeReordered ChangeKind = "reordered"
)

// Change describes one committed mutation. MovieID is 0 for reorders.
type Change struct {
	Kind    ChangeKind
	MovieID int
}

// Repository stores saved movies in the database
type Repository struct {
	db      *gorm.DB
	details Details
	genres  GenreResolver
	now     func() time.Time
	logger  *logger.FieldLogger

	mu        sync.RWMutex
	listeners []func(Change)
}

// Option customises a Repository
type Option func(*Repository)

// WithGenres resolves genre names when building history
func WithGenres(g GenreResolver) Option {
	return func(r *Repository) { r.genres = g }
}

// WithOnChange registers fn to run after every committed mutation
func WithOnChange(fn func(Change)) Option {
	return func(r *Repository) { r.listeners = append(r.listeners, fn) }
}

// WithLogger sets the repository logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Repository) { r.logger = l.Component("savedlist") }
}

// WithClock fixes the time stamped on new entries
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New creates a Repository. details is used by Add to hydrate new entries.
func New(db *gorm.DB, details Details, opts ...Option) *Repository {
	r := &Repository{
		db:      db,
		details: details,
		now:     time.Now,
		logger:  logger.AppLogger().Component("savedlist"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange registers fn to run after every committed mutation
func (r *Repository) OnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// List returns every saved movie by position
func (r *Repository) List(ctx context.Context) ([]models.SavedMovie, error) {
	var saved []models.SavedMovie
	if err := r.db.WithContext(ctx).Order("position ASC").Order("id ASC").Find(&saved).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to list saved movies", err)
	}
	return saved, nil
}

// Get returns the entry for movieID
func (r *Repository) Get(ctx context.Context, movieID int) (*models.SavedMovie, error) {
	var saved models.SavedMovie
	err := r.db.WithContext(ctx).Where("movie_id = ?", movieID).First(&saved).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFoundError("saved movie", strconv.Itoa(movieID))
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load saved movie", err)
	}
	return &saved, nil
}

// Add hydrates movieID and appends it to the list. Adding a movie that is
// already saved returns the existing entry and does not notify listeners,
// including when concurrent Adds of the same movie race.
func (r *Repository) Add(ctx context.Context, movieID int) (*models.SavedMovie, error) {
	if movieID <= 0 {
		return nil, apperrors.ValidationError("movie id must be positive")
	}
	if existing, err := r.Get(ctx, movieID); err == nil {
		return existing, nil
	} else if apperrors.GetErrorCode(err) != apperrors.CodeNotFound {
		return nil, err
	}

	movie, err := r.details.Enrich(ctx, movieID)
	if err != nil {
		return nil, err
	}

	saved := models.NewSavedMovie(*movie)
	saved.SavedAt = r.now()

	var inserted bool
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last struct{ Max int }
		if err := tx.Model(&models.SavedMovie{}).Select("COALESCE(MAX(position), 0) AS max").Scan(&last).Error; err != nil {
			return err
		}
		saved.Position = last.Max + 1
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "movie_id"}},
			DoNothing: true,
		}).Create(&saved)
		inserted = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		return nil, apperrors.DatabaseError("failed to save movie", err).WithContext("movie_id", movieID)
	}
	if !inserted {
		// a concurrent Add committed the same movie first
		return r.Get(ctx, movieID)
	}

	r.logger.WithFields(map[string]interface{}{
		"movie_id": movieID,
		"title":    saved.Title,
		"position": saved.Position,
	}).InfoContext(ctx, "movie saved")

	r.committed(ctx, Change{Kind: ChangeAdded, MovieID: movieID})
	return &saved, nil
}

// Remove deletes movieID from the list
func (r *Repository) Remove(ctx context.Context, movieID int) error {
	res := r.db.WithContext(ctx).Where("movie_id = ?", movieID).Delete(&models.SavedMovie{})
	if res.Error != nil {
		return apperrors.DatabaseError("failed to remove saved movie", res.Error).WithContext("movie_id", movieID)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFoundError("saved movie", strconv.Itoa(movieID))
	}

	r.committed(ctx, Change{Kind: ChangeRemoved, MovieID: movieID})
	return nil
}

// Reorder assigns positions following ids, which must name every saved movie
// exactly once
func (r *Repository) Reorder(ctx context.Context, ids []int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []int
		if err := tx.Model(&models.SavedMovie{}).Pluck("movie_id", &current).Error; err != nil {
			return apperrors.DatabaseError("failed to load saved movies", err)
		}
		if !samePermutation(current, ids) {
			return apperrors.ValidationError("order must list every saved movie exactly once").
				WithContext("expected", len(current)).
				WithContext("got", len(ids))
		}

		for i, id := range ids {
			err := tx.Model(&models.SavedMovie{}).Where("movie_id = ?", id).Update("position", i+1).Error
			if err != nil {
				return apperrors.DatabaseError("failed to update position", err).WithContext("movie_id", id)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.committed(ctx, Change{Kind: ChangeReordered})
	return nil
}

// Count returns the number of saved movies
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.SavedMovie{}).Count(&n).Error; err != nil {
		return 0, apperrors.DatabaseError("failed to count saved movies", err)
	}
	return n, nil
}

// History returns the saved movies as degraded records, oldest save first, so
// the most recently saved movie carries the highest recency weight. Genre
// names are filled in when a resolver is configured and reachable.
func (r *Repository) History(ctx context.Context) ([]models.EnrichedMovie, error) {
	var saved []models.SavedMovie
	if err := r.db.WithContext(ctx).Order("saved_at ASC").Order("id ASC").Find(&saved).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load history", err)
	}

	history := make([]models.EnrichedMovie, len(saved))
	for i, s := range saved {
		history[i] = s.ToEnriched()
		if r.genres == nil || len(history[i].GenreIDs) == 0 {
			continue
		}
		genres, err := r.genres.Resolve(ctx, history[i].GenreIDs)
		if err != nil {
			r.logger.WithFields(map[string]interface{}{
				"movie_id": s.MovieID,
				"error":    err.Error(),
			}).WarnContext(ctx, "genre names unavailable for history")
			continue
		}
		history[i].Genres = genres
	}
	return history, nil
}

func (r *Repository) committed(ctx context.Context, c Change) {
	if n, err := r.Count(ctx); err == nil {
		metrics.SetSavedListSize(n)
	}

	r.mu.RLock()
	listeners := make([]func(Change), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(c)
	}
}

func samePermutation(current, ids []int) bool {
	if len(current) != len(ids) {
		return false
	}
	want := make(map[int]int, len(current))
	for _, id := range current {
		want[id]++
	}
	for _, id := range ids {
		if want[id] == 0 {
			return false
		}
		want[id]--
	}
	return true
}
