// Package stats computes descriptive analytics over a result set.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/glefebvre/cinefinder/internal/models"
)

// TopGenreStats is how many genres get a per-genre breakdown
const TopGenreStats = 8

// GenreCount is one bar of the genre distribution
type GenreCount struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DecadeCount is one bar of the decade distribution
type DecadeCount struct {
	Decade int    `json:"decade"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// YearCount is one point of the release timeline
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Summary is a five-number summary plus mean, population standard deviation
// and the number of values outside 1.5 IQR fences
type Summary struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Q1       float64 `json:"q1"`
	Median   float64 `json:"median"`
	Q3       float64 `json:"q3"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Outliers int     `json:"outliers"`
}

// GenreStats breaks one genre's movies down by metric
type GenreStats struct {
	Genre      string   `json:"genre"`
	Count      int      `json:"count"`
	Rating     Summary  `json:"rating"`
	Popularity Summary  `json:"popularity"`
	Votes      Summary  `json:"votes"`
	Runtime    *Summary `json:"runtime,omitempty"`
}

// BudgetRevenue is one point of the budget against revenue plot
type BudgetRevenue struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	BudgetMillions  float64 `json:"budget_millions"`
	RevenueMillions float64 `json:"revenue_millions"`
	ROI             float64 `json:"roi"`
	Rating          float64 `json:"rating"`
}

// Totals are the headline numbers of a result set
type Totals struct {
	Movies        int     `json:"total_movies"`
	Genres        int     `json:"total_genres"`
	AvgRating     float64 `json:"avg_rating"`
	AvgPopularity float64 `json:"avg_popularity"`
	AvgRuntime    float64 `json:"avg_runtime"`
	YearMin       int     `json:"year_min"`
	YearMax       int     `json:"year_max"`
	TotalBudget   int64   `json:"total_budget"`
	TotalRevenue  int64   `json:"total_revenue"`
}

// Report is the full analytics payload
type Report struct {
	Totals        Totals          `json:"totals"`
	Genres        []GenreCount    `json:"genres"`
	Decades       []DecadeCount   `json:"decades"`
	Timeline      []YearCount     `json:"timeline"`
	BudgetRevenue []BudgetRevenue `json:"budget_revenue"`
	GenreStats    []GenreStats    `json:"genre_stats"`
}

// Analyze builds a Report. Movies without a parseable release date are left
// out of the decade and timeline series; zero runtimes, budgets and revenues
// count as unknown.
func Analyze(movies []models.EnrichedMovie) Report {
	r := Report{
		Genres:        []GenreCount{},
		Decades:       []DecadeCount{},
		Timeline:      []YearCount{},
		BudgetRevenue: []BudgetRevenue{},
		GenreStats:    []GenreStats{},
	}
	if len(movies) == 0 {
		return r
	}

	r.Genres = genreDistribution(movies)
	r.Decades, r.Timeline = releaseSeries(movies)
	r.Totals = totals(movies, len(r.Genres))

	for _, m := range movies {
		if m.Budget <= 0 || m.Revenue <= 0 {
			continue
		}
		r.BudgetRevenue = append(r.BudgetRevenue, BudgetRevenue{
			ID:              m.ID,
			Title:           m.Title,
			BudgetMillions:  float64(m.Budget) / 1e6,
			RevenueMillions: float64(m.Revenue) / 1e6,
			ROI:             round1(float64(m.Revenue-m.Budget) / float64(m.Budget) * 100),
			Rating:          m.VoteAverage,
		})
	}

	top := r.Genres
	if len(top) > TopGenreStats {
		top = top[:TopGenreStats]
	}
	for _, g := range top {
		r.GenreStats = append(r.GenreStats, genreStats(movies, g))
	}
	return r
}

// Summarize computes a Summary. Quartiles use the nearest rank at
// floor(n*p). It reports false for an empty input.
func Summarize(values []float64) (Summary, bool) {
	n := len(values)
	if n == 0 {
		return Summary{}, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	s := Summary{
		Count:  n,
		Min:    sorted[0],
		Q1:     rank(sorted, 0.25),
		Median: rank(sorted, 0.5),
		Q3:     rank(sorted, 0.75),
		Max:    sorted[n-1],
	}

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	s.Mean = sum / float64(n)

	variance := 0.0
	for _, v := range sorted {
		variance += (v - s.Mean) * (v - s.Mean)
	}
	s.Std = math.Sqrt(variance / float64(n))

	iqr := s.Q3 - s.Q1
	lower, upper := s.Q1-1.5*iqr, s.Q3+1.5*iqr
	for _, v := range sorted {
		if v < lower || v > upper {
			s.Outliers++
		}
	}
	return s, true
}

func rank(sorted []float64, p float64) float64 {
	i := int(math.Floor(float64(len(sorted)) * p))
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

// genreDistribution counts movies per named genre, most frequent first;
// ties are ordered by name
func genreDistribution(movies []models.EnrichedMovie) []GenreCount {
	byName := make(map[string]*GenreCount)
	for _, m := range movies {
		seen := make(map[string]struct{})
		for _, g := range m.Genres {
			if g.Name == "" {
				continue
			}
			if _, dup := seen[g.Name]; dup {
				continue
			}
			seen[g.Name] = struct{}{}
			c, ok := byName[g.Name]
			if !ok {
				c = &GenreCount{ID: g.ID, Name: g.Name}
				byName[g.Name] = c
			}
			c.Count++
		}
	}

	out := make([]GenreCount, 0, len(byName))
	for _, c := range byName {
		c.Percentage = round1(float64(c.Count) / float64(len(movies)) * 100)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func releaseSeries(movies []models.EnrichedMovie) ([]DecadeCount, []YearCount) {
	decades := make(map[int]int)
	years := make(map[int]int)
	for i := range movies {
		y, ok := movies[i].ReleaseYear()
		if !ok {
			continue
		}
		years[y]++
		decades[y/10*10]++
	}

	decadeOut := make([]DecadeCount, 0, len(decades))
	for d, n := range decades {
		decadeOut = append(decadeOut, DecadeCount{Decade: d, Label: fmt.Sprintf("%ds", d), Count: n})
	}
	sort.Slice(decadeOut, func(i, j int) bool { return decadeOut[i].Decade < decadeOut[j].Decade })

	yearOut := make([]YearCount, 0, len(years))
	for y, n := range years {
		yearOut = append(yearOut, YearCount{Year: y, Count: n})
	}
	sort.Slice(yearOut, func(i, j int) bool { return yearOut[i].Year < yearOut[j].Year })

	return decadeOut, yearOut
}

func totals(movies []models.EnrichedMovie, genres int) Totals {
	t := Totals{Movies: len(movies), Genres: genres}

	var rating, popularity, runtime float64
	runtimes := 0
	for i := range movies {
		m := &movies[i]
		rating += m.VoteAverage
		popularity += m.Popularity
		if m.Runtime > 0 {
			runtime += float64(m.Runtime)
			runtimes++
		}
		if m.Budget > 0 {
			t.TotalBudget += m.Budget
		}
		if m.Revenue > 0 {
			t.TotalRevenue += m.Revenue
		}
		if y, ok := m.ReleaseYear(); ok {
			if t.YearMin == 0 || y < t.YearMin {
				t.YearMin = y
			}
			if y > t.YearMax {
				t.YearMax = y
			}
		}
	}

	t.AvgRating = round1(rating / float64(len(movies)))
	t.AvgPopularity = round1(popularity / float64(len(movies)))
	if runtimes > 0 {
		t.AvgRuntime = math.Round(runtime / float64(runtimes))
	}
	return t
}

func genreStats(movies []models.EnrichedMovie, g GenreCount) GenreStats {
	var ratings, popularity, votes, runtimes []float64
	for i := range movies {
		m := &movies[i]
		if !hasGenreName(m, g.Name) {
			continue
		}
		ratings = append(ratings, m.VoteAverage)
		popularity = append(popularity, m.Popularity)
		votes = append(votes, float64(m.VoteCount))
		if m.Runtime > 0 {
			runtimes = append(runtimes, float64(m.Runtime))
		}
	}

	gs := GenreStats{Genre: g.Name, Count: len(ratings)}
	gs.Rating, _ = Summarize(ratings)
	gs.Popularity, _ = Summarize(popularity)
	gs.Votes, _ = Summarize(votes)
	if s, ok := Summarize(runtimes); ok {
		gs.Runtime = &s
	}
	return gs
}

func hasGenreName(m *models.EnrichedMovie, name string) bool {
	for _, g := range m.Genres {
		if g.Name == name {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
