package models

import (
	"fmt"
	"time"
)

// SortKey is a catalog sort order, in the catalog's own "field.direction" form
type SortKey string

const (
	SortPopularityDesc  SortKey = "popularity.desc"
	SortPopularityAsc   SortKey = "popularity.asc"
	SortReleaseDateDesc SortKey = "release_date.desc"
	SortReleaseDateAsc  SortKey = "release_date.asc"
	SortVoteAverageDesc SortKey = "vote_average.desc"
	SortVoteAverageAsc  SortKey = "vote_average.asc"
	SortRevenueDesc     SortKey = "revenue.desc"
)

// SortKeys lists every accepted sort key
var SortKeys = []SortKey{
	SortPopularityDesc,
	SortPopularityAsc,
	SortReleaseDateDesc,
	SortReleaseDateAsc,
	SortVoteAverageDesc,
	SortVoteAverageAsc,
	SortRevenueDesc,
}

// Valid reports whether k is one of SortKeys
func (k SortKey) Valid() bool {
	for _, known := range SortKeys {
		if k == known {
			return true
		}
	}
	return false
}

// SearchFilters narrows a search. Zero YearStart/YearEnd leave that side open.
type SearchFilters struct {
	GenreIDs  []int   `json:"genre_ids" validate:"omitempty,dive,gt=0"`
	YearStart int     `json:"year_start" validate:"omitempty,gte=1870,lte=2200"`
	YearEnd   int     `json:"year_end" validate:"omitempty,gte=1870,lte=2200"`
	SortKey   SortKey `json:"sort_by" validate:"omitempty,sortkey"`
	Region    string  `json:"region" validate:"omitempty,len=2,alpha"`
}

// DefaultFilters returns the filters used when the caller supplies none
func DefaultFilters() SearchFilters {
	return SearchFilters{
		YearStart: 1950,
		YearEnd:   time.Now().Year(),
		SortKey:   SortPopularityDesc,
		Region:    "BR",
	}
}

// HasYearRange reports whether either bound is set
func (f SearchFilters) HasYearRange() bool {
	return f.YearStart != 0 || f.YearEnd != 0
}

// InYearRange reports whether year lies within the inclusive bounds
func (f SearchFilters) InYearRange(year int) bool {
	if f.YearStart != 0 && year < f.YearStart {
		return false
	}
	if f.YearEnd != 0 && year > f.YearEnd {
		return false
	}
	return true
}

// EffectiveSortKey returns SortKey, defaulting to popularity.desc
func (f SearchFilters) EffectiveSortKey() SortKey {
	if f.SortKey == "" {
		return SortPopularityDesc
	}
	return f.SortKey
}

// SearchResults is the aggregate search answer. Paging fields are always 1:
// results are truncated server-side rather than paged.
type SearchResults struct {
	Movies       []EnrichedMovie `json:"movies"`
	TotalResults int             `json:"total_results"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
}

// NewSearchResults wraps movies into a single-page answer
func NewSearchResults(movies []EnrichedMovie) *SearchResults {
	if movies == nil {
		movies = []EnrichedMovie{}
	}
	return &SearchResults{
		Movies:       movies,
		TotalResults: len(movies),
		Page:         1,
		TotalPages:   1,
	}
}

// Lens is a named recommendation strategy
type Lens string

const (
	LensSmart    Lens = "smart"
	LensQuality  Lens = "quality"
	LensTrending Lens = "trending"
)

// Lenses lists every lens in presentation order
var Lenses = []Lens{LensSmart, LensQuality, LensTrending}

// ParseLens validates a lens name
func ParseLens(s string) (Lens, error) {
	switch Lens(s) {
	case LensSmart, LensQuality, LensTrending:
		return Lens(s), nil
	case "":
		return LensSmart, nil
	}
	return "", fmt.Errorf("unknown lens %q (want smart, quality or trending)", s)
}
