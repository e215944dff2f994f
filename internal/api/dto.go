package api

import (
	"github.com/glefebvre/cinefinder/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Fields  interface{} `json:"fields,omitempty"`
}

// SearchRequest is the body of POST /search
type SearchRequest struct {
	MovieTerms    []string              `json:"movie_terms" validate:"max=50,dive,max=200"`
	DirectorTerms []string              `json:"director_terms" validate:"max=50,dive,max=200"`
	Filters       *models.SearchFilters `json:"filters" validate:"-"`
}

// UploadResponse is a search answer plus the terms read from the file
type UploadResponse struct {
	*models.SearchResults
	MovieTerms    []string `json:"movie_terms"`
	DirectorTerms []string `json:"director_terms"`
}

// MovieResponse is a detail record with resolved artwork URLs
type MovieResponse struct {
	models.EnrichedMovie
	PosterURL   string `json:"poster_url"`
	BackdropURL string `json:"backdrop_url"`
}

// RecommendRequest is the body of POST /recommendations. History entries are
// used as sent; HistoryIDs are hydrated from the catalog and appended.
type RecommendRequest struct {
	History    []models.EnrichedMovie `json:"history" validate:"max=100"`
	HistoryIDs []int                  `json:"history_ids" validate:"max=100,dive,gt=0"`
	Lens       string                 `json:"lens" validate:"omitempty,lens"`
}

// RecommendResponse lists recommendations for one lens
type RecommendResponse struct {
	Lens      models.Lens            `json:"lens"`
	SessionID string                 `json:"session_id"`
	Movies    []models.EnrichedMovie `json:"movies"`
}

// SaveRequest is the body of POST /saved
type SaveRequest struct {
	ID int `json:"id" validate:"required,gt=0"`
}

// ReorderRequest is the body of PUT /saved/order
type ReorderRequest struct {
	IDs []int `json:"ids" validate:"required,dive,gt=0"`
}

// SavedListResponse lists saved movies by position
type SavedListResponse struct {
	Movies []models.SavedMovie `json:"movies"`
	Total  int                 `json:"total"`
}

// StatsRequest is the body of POST /stats
type StatsRequest struct {
	Movies []models.EnrichedMovie `json:"movies" validate:"max=1000"`
}

// GenresResponse lists the genre reference
type GenresResponse struct {
	Genres []models.Genre `json:"genres"`
}
