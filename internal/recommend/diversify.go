package recommend

import "github.com/glefebvre/cinefinder/internal/models"

// guaranteedSlots are always filled by the best-scoring candidates
const guaranteedSlots = 3

// Scored pairs a candidate with its score
type Scored struct {
	Movie models.EnrichedMovie
	Score float64
}

// Diversify picks up to n movies from ranked (best first). The top three are
// taken as is; later slots go to candidates that add an unseen primary genre,
// director or decade, and any remaining slots are backfilled by rank.
func Diversify(ranked []Scored, n int) []models.EnrichedMovie {
	if n <= 0 {
		return []models.EnrichedMovie{}
	}

	out := make([]models.EnrichedMovie, 0, n)
	taken := make([]bool, len(ranked))
	genres := make(map[int]struct{})
	directors := make(map[string]struct{})
	decades := make(map[int]struct{})

	take := func(i int) {
		m := ranked[i].Movie
		taken[i] = true
		out = append(out, m)
		if g, ok := m.PrimaryGenre(); ok {
			genres[g.ID] = struct{}{}
		}
		if m.HasKnownDirector() {
			directors[m.Director] = struct{}{}
		}
		if d := m.Decade(); d > 0 {
			decades[d] = struct{}{}
		}
	}

	for i := 0; i < len(ranked) && len(out) < guaranteedSlots && len(out) < n; i++ {
		take(i)
	}

	for i := range ranked {
		if len(out) >= n {
			break
		}
		if taken[i] {
			continue
		}
		m := &ranked[i].Movie
		if introducesNew(m, genres, directors, decades) {
			take(i)
		}
	}

	for i := range ranked {
		if len(out) >= n {
			break
		}
		if !taken[i] {
			take(i)
		}
	}

	return out
}

func introducesNew(m *models.EnrichedMovie, genres map[int]struct{}, directors map[string]struct{}, decades map[int]struct{}) bool {
	if g, ok := m.PrimaryGenre(); ok {
		if _, seen := genres[g.ID]; !seen {
			return true
		}
	}
	if m.HasKnownDirector() {
		if _, seen := directors[m.Director]; !seen {
			return true
		}
	}
	if d := m.Decade(); d > 0 {
		if _, seen := decades[d]; !seen {
			return true
		}
	}
	return false
}
