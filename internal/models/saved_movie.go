package models

import (
	"strconv"
	"strings"
	"time"
)

// SavedMovie is a persisted saved-list entry
type SavedMovie struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	MovieID     int       `gorm:"not null;uniqueIndex:idx_saved_movies_movie" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	PosterPath  string    `gorm:"type:varchar(255)" json:"poster_path"`
	ReleaseDate string    `gorm:"type:varchar(16)" json:"release_date"`
	VoteAverage float64   `json:"vote_average"`
	Popularity  float64   `json:"popularity"`
	Director    string    `gorm:"type:varchar(255)" json:"director"`
	GenreIDs    string    `gorm:"type:text" json:"-"`
	Position    int       `gorm:"not null;index:idx_saved_movies_position" json:"position"`
	SavedAt     time.Time `gorm:"not null" json:"saved_at"`
	CreatedAt   time.Time `gorm:"not null" json:"-"`
	UpdatedAt   time.Time `gorm:"not null" json:"-"`
}

// TableName specifies the table name for SavedMovie
func (SavedMovie) TableName() string {
	return "saved_movies"
}

// NewSavedMovie captures the persisted subset of m
func NewSavedMovie(m EnrichedMovie) SavedMovie {
	return SavedMovie{
		MovieID:     m.ID,
		Title:       m.Title,
		PosterPath:  m.PosterPath,
		ReleaseDate: m.ReleaseDate,
		VoteAverage: m.VoteAverage,
		Popularity:  m.Popularity,
		Director:    m.Director,
		GenreIDs:    JoinIDs(m.GenreIDList()),
	}
}

// GenreIDList decodes the stored genre ids
func (s SavedMovie) GenreIDList() []int {
	return SplitIDs(s.GenreIDs)
}

// ToEnriched rebuilds a degraded EnrichedMovie from the stored subset.
// Genres carry ids only; callers resolve names when they need them.
func (s SavedMovie) ToEnriched() EnrichedMovie {
	ids := s.GenreIDList()
	genres := make([]Genre, len(ids))
	for i, id := range ids {
		genres[i] = Genre{ID: id}
	}

	director := s.Director
	if director == "" {
		director = NotInformed
	}

	return EnrichedMovie{
		CatalogItem: CatalogItem{
			ID:          s.MovieID,
			Title:       s.Title,
			PosterPath:  s.PosterPath,
			ReleaseDate: s.ReleaseDate,
			GenreIDs:    ids,
			Genres:      genres,
			VoteAverage: s.VoteAverage,
			Popularity:  s.Popularity,
		},
		Director:          director,
		Cast:              NotInformed,
		StreamingServices: NotAvailable,
		Degraded:          true,
	}
}

// JoinIDs renders ids as "28,35,18"
func JoinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// SplitIDs parses a JoinIDs string, skipping malformed entries
func SplitIDs(s string) []int {
	if s == "" {
		return nil
	}
	var ids []int
	for _, p := range strings.Split(s, ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
