package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/glefebvre/cinefinder/internal/models"
)

// Range summarises one numeric preference
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Profile is a taste profile derived from viewing history. It is rebuilt on
// every call and never stored.
type Profile struct {
	GenreWeights    map[int]float64    `json:"genre_weights"`
	DirectorWeights map[string]float64 `json:"director_weights"`
	DecadeWeights   map[int]float64    `json:"decade_weights"`
	Rating          Range              `json:"rating"`
	Popularity      Range              `json:"popularity"`
	Runtime         Range              `json:"runtime"`
	// Default is set when the profile was not derived from history
	Default bool `json:"default"`
}

// Default preference anchors
var (
	DefaultGenres     = []int{28, 35, 18}
	defaultRating     = Range{Min: 6.0, Max: 8.5, Avg: 7.0}
	defaultPopularity = Range{Min: 10, Max: 100, Avg: 50}
	defaultRuntime    = Range{Min: 90, Max: 140, Avg: 110}
)

// DefaultProfile favours broad genres and the current decade
func DefaultProfile(now time.Time) Profile {
	genres := make(map[int]float64, len(DefaultGenres))
	for _, id := range DefaultGenres {
		genres[id] = 1
	}
	return Profile{
		GenreWeights:    genres,
		DirectorWeights: map[string]float64{},
		DecadeWeights:   map[int]float64{now.Year() / 10 * 10: 1},
		Rating:          defaultRating,
		Popularity:      defaultPopularity,
		Runtime:         defaultRuntime,
		Default:         true,
	}
}

// BuildProfile accumulates genre, director and decade weights with a recency
// weight of (i+1)/len(history), so later entries count more. An empty history
// yields DefaultProfile.
func BuildProfile(history []models.EnrichedMovie, now time.Time) Profile {
	if len(history) == 0 {
		return DefaultProfile(now)
	}

	p := Profile{
		GenreWeights:    make(map[int]float64),
		DirectorWeights: make(map[string]float64),
		DecadeWeights:   make(map[int]float64),
	}

	n := float64(len(history))
	ratings := make([]float64, 0, len(history))
	popularity := make([]float64, 0, len(history))
	runtimes := make([]float64, 0, len(history))

	for i := range history {
		m := &history[i]
		w := float64(i+1) / n

		seen := make(map[int]struct{})
		for _, id := range m.GenreIDList() {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			p.GenreWeights[id] += w
		}
		if m.HasKnownDirector() {
			p.DirectorWeights[m.Director] += w
		}
		if d := m.Decade(); d > 0 {
			p.DecadeWeights[d] += w
		}

		ratings = append(ratings, m.VoteAverage)
		popularity = append(popularity, m.Popularity)
		if m.Runtime > 0 {
			runtimes = append(runtimes, float64(m.Runtime))
		}
	}

	p.Rating = summarise(ratings, defaultRating)
	p.Popularity = summarise(popularity, defaultPopularity)
	p.Runtime = summarise(runtimes, defaultRuntime)
	return p
}

// TopGenres returns up to n genre ids by descending weight; ties go to the
// lower id
func (p Profile) TopGenres(n int) []int {
	ids := make([]int, 0, len(p.GenreWeights))
	for id := range p.GenreWeights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		wi, wj := p.GenreWeights[ids[i]], p.GenreWeights[ids[j]]
		if wi != wj {
			return wi > wj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// PreferredDecade returns the heaviest decade; ties go to the later decade.
// Without decade data it returns the decade of now.
func (p Profile) PreferredDecade(now time.Time) int {
	best, bestWeight := 0, -1.0
	for d, w := range p.DecadeWeights {
		if w > bestWeight || (w == bestWeight && d > best) {
			best, bestWeight = d, w
		}
	}
	if best == 0 {
		return now.Year() / 10 * 10
	}
	return best
}

func maxWeight[K comparable](weights map[K]float64) float64 {
	top := 0.0
	for _, w := range weights {
		top = math.Max(top, w)
	}
	return top
}

func summarise(values []float64, fallback Range) Range {
	if len(values) == 0 {
		return fallback
	}
	r := Range{Min: values[0], Max: values[0]}
	sum := 0.0
	for _, v := range values {
		r.Min = math.Min(r.Min, v)
		r.Max = math.Max(r.Max, v)
		sum += v
	}
	r.Avg = sum / float64(len(values))
	return r
}
