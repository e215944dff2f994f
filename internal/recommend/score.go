package recommend

import (
	"math"
	"time"

	"github.com/glefebvre/cinefinder/internal/models"
)

// Scoring weights and thresholds
const (
	WeightGenre      = 0.30
	WeightRating     = 0.25
	WeightDirector   = 0.20
	WeightPopularity = 0.15
	WeightRecency    = 0.10

	BonusEstablished = 0.05
	BonusGenreRich   = 0.03
	MinScore         = 0.15

	establishedRating = 7.0
	establishedVotes  = 100
	recencyWindowDays = 730.0
	decadeSpan        = 50.0
)

// Breakdown holds the unweighted component scores, each in [0, 1]
type Breakdown struct {
	Genre      float64 `json:"genre"`
	Director   float64 `json:"director"`
	Rating     float64 `json:"rating"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
	Bonus      float64 `json:"bonus"`
	Total      float64 `json:"total"`
}

// Scorer rates candidates against a profile under one lens
type Scorer struct {
	profile         Profile
	lens            models.Lens
	now             time.Time
	maxPopularity   float64
	maxGenre        float64
	maxDirector     float64
	preferredDecade int
}

// NewScorer prepares a scorer for a candidate pool. The pool is only used to
// find the highest popularity for the trending lens.
func NewScorer(p Profile, lens models.Lens, pool []models.EnrichedMovie, now time.Time) *Scorer {
	s := &Scorer{
		profile:         p,
		lens:            lens,
		now:             now,
		maxGenre:        maxWeight(p.GenreWeights),
		maxDirector:     maxWeight(p.DirectorWeights),
		preferredDecade: p.PreferredDecade(now),
	}
	for i := range pool {
		s.maxPopularity = math.Max(s.maxPopularity, pool[i].Popularity)
	}
	return s
}

// Score returns the weighted total for m
func (s *Scorer) Score(m *models.EnrichedMovie) float64 {
	return s.Breakdown(m).Total
}

// Breakdown scores every component of m
func (s *Scorer) Breakdown(m *models.EnrichedMovie) Breakdown {
	b := Breakdown{
		Genre:      s.genreScore(m),
		Director:   s.directorScore(m),
		Rating:     s.ratingScore(m),
		Recency:    s.recencyScore(m),
		Popularity: s.popularityScore(m),
	}

	if m.VoteAverage >= establishedRating && m.VoteCount >= establishedVotes {
		b.Bonus += BonusEstablished
	}
	if len(m.Genres) > 2 {
		b.Bonus += BonusGenreRich
	}

	b.Total = b.Genre*WeightGenre +
		b.Rating*WeightRating +
		b.Director*WeightDirector +
		b.Popularity*WeightPopularity +
		b.Recency*WeightRecency +
		b.Bonus
	return b
}

func (s *Scorer) genreScore(m *models.EnrichedMovie) float64 {
	ids := m.GenreIDList()
	if len(ids) == 0 || s.maxGenre == 0 {
		return 0
	}
	sum := 0.0
	for _, id := range ids {
		sum += s.profile.GenreWeights[id] / s.maxGenre
	}
	return sum / float64(len(ids))
}

func (s *Scorer) directorScore(m *models.EnrichedMovie) float64 {
	if !m.HasKnownDirector() || s.maxDirector == 0 {
		return 0
	}
	return s.profile.DirectorWeights[m.Director] / s.maxDirector
}

func (s *Scorer) ratingScore(m *models.EnrichedMovie) float64 {
	if s.lens == models.LensQuality {
		return clamp(m.VoteAverage / 10)
	}
	return clamp(1 - math.Abs(m.VoteAverage-s.profile.Rating.Avg)/10)
}

func (s *Scorer) recencyScore(m *models.EnrichedMovie) float64 {
	if s.lens == models.LensTrending {
		released := m.ReleaseTime()
		if released.IsZero() {
			return 0
		}
		days := s.now.Sub(released).Hours() / 24
		return clamp(1 - days/recencyWindowDays)
	}

	decade := m.Decade()
	if decade == 0 {
		return 0
	}
	return clamp(1 - math.Abs(float64(decade-s.preferredDecade))/decadeSpan)
}

func (s *Scorer) popularityScore(m *models.EnrichedMovie) float64 {
	if s.lens == models.LensTrending {
		if s.maxPopularity <= 0 {
			return 0
		}
		return clamp(m.Popularity / s.maxPopularity)
	}

	avg := s.profile.Popularity.Avg
	denom := math.Max(avg, m.Popularity)
	if denom <= 0 {
		return 1
	}
	return clamp(1 - math.Abs(m.Popularity-avg)/denom)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
