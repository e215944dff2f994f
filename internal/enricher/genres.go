package enricher

import (
	"context"
	"sync"

	"github.com/glefebvre/cinefinder/internal/models"
)

// GenreSource fetches the genre reference list
type GenreSource interface {
	Genres(ctx context.Context) ([]models.Genre, error)
}

// GenreRegistry loads the genre reference list once and serves it from memory.
// A failed load is not remembered; the next call tries again.
type GenreRegistry struct {
	source GenreSource

	mu     sync.Mutex
	loaded bool
	genres []models.Genre
	byID   map[int]models.Genre
}

// NewGenreRegistry creates a registry backed by source
func NewGenreRegistry(source GenreSource) *GenreRegistry {
	return &GenreRegistry{source: source}
}

// All returns every known genre in catalog order
func (r *GenreRegistry) All(ctx context.Context) ([]models.Genre, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	out := make([]models.Genre, len(r.genres))
	copy(out, r.genres)
	return out, nil
}

// Resolve maps ids to genre objects. Unknown ids are dropped and repeated ids
// appear once.
func (r *GenreRegistry) Resolve(ctx context.Context, ids []int) ([]models.Genre, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}

	out := make([]models.Genre, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		g, ok := r.byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, g)
	}
	return out, nil
}

// Name returns the display name of id, or "" when unknown
func (r *GenreRegistry) Name(ctx context.Context, id int) string {
	if err := r.load(ctx); err != nil {
		return ""
	}
	return r.byID[id].Name
}

func (r *GenreRegistry) load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	genres, err := r.source.Genres(ctx)
	if err != nil {
		return err
	}

	r.genres = genres
	r.byID = make(map[int]models.Genre, len(genres))
	for _, g := range genres {
		r.byID[g.ID] = g
	}
	r.loaded = true
	return nil
}
