package models

import (
	"strconv"
	"time"
)

// Placeholders used in place of missing detail fields
const (
	NotInformed  = "Não informado"
	NotAvailable = "Não disponível"
)

// Genre is a catalog genre reference
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CatalogItem is a raw movie record as returned by the catalog.
// Search and discovery endpoints fill GenreIDs; the detail endpoint fills Genres.
type CatalogItem struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	GenreIDs         []int   `json:"genre_ids"`
	Genres           []Genre `json:"genres"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	Adult            bool    `json:"adult"`
	OriginalLanguage string  `json:"original_language"`
	Video            bool    `json:"video"`
}

// EnrichedMovie is a catalog item merged with credits and watch availability.
// Genres always holds the resolved, deduplicated genre objects.
type EnrichedMovie struct {
	CatalogItem

	Director          string `json:"director"`
	Cast              string `json:"cast"`
	StreamingServices string `json:"streaming_services"`
	Runtime           int    `json:"runtime"`
	Budget            int64  `json:"budget"`
	Revenue           int64  `json:"revenue"`

	// Degraded marks a best-effort record built without detail lookups
	Degraded bool `json:"degraded,omitempty"`
}

// ReleaseYear parses the year of ReleaseDate. It reports false for empty or
// malformed dates.
func (m *CatalogItem) ReleaseYear() (int, bool) {
	return ParseYear(m.ReleaseDate)
}

// ReleaseTime returns the parsed release date, or the zero time
func (m *CatalogItem) ReleaseTime() time.Time {
	t, err := time.Parse("2006-01-02", m.ReleaseDate)
	if err != nil {
		if y, ok := ParseYear(m.ReleaseDate); ok {
			return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		return time.Time{}
	}
	return t
}

// Decade returns the release decade (1990 for 1994), or 0 when unknown
func (m *CatalogItem) Decade() int {
	y, ok := m.ReleaseYear()
	if !ok {
		return 0
	}
	return y / 10 * 10
}

// PrimaryGenre returns the first resolved genre
func (m *CatalogItem) PrimaryGenre() (Genre, bool) {
	if len(m.Genres) == 0 {
		return Genre{}, false
	}
	return m.Genres[0], true
}

// HasAnyGenre reports whether at least one resolved genre is in ids
func (m *CatalogItem) HasAnyGenre(ids []int) bool {
	for _, g := range m.Genres {
		for _, id := range ids {
			if g.ID == id {
				return true
			}
		}
	}
	return false
}

// GenreIDList returns resolved genre ids, falling back to the raw id list
func (m *CatalogItem) GenreIDList() []int {
	if len(m.Genres) == 0 {
		return m.GenreIDs
	}
	ids := make([]int, len(m.Genres))
	for i, g := range m.Genres {
		ids[i] = g.ID
	}
	return ids
}

// HasKnownDirector reports whether Director holds a real name
func (m *EnrichedMovie) HasKnownDirector() bool {
	return m.Director != "" && m.Director != NotInformed
}

// ParseYear extracts the year from "YYYY-MM-DD" or "YYYY"
func ParseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	if len(date) > 4 {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return 0, false
		}
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

// DedupeByID keeps the first record seen for every identifier
func DedupeByID(movies []EnrichedMovie) []EnrichedMovie {
	seen := make(map[int]struct{}, len(movies))
	out := make([]EnrichedMovie, 0, len(movies))
	for _, m := range movies {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
