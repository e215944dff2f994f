package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glefebvre/cinefinder/internal/models"
	testutil "github.com/glefebvre/cinefinder/internal/testing"
)

func candidate() models.EnrichedMovie {
	return testutil.NewMovie(50,
		testutil.WithGenres(drama, crime),
		testutil.WithDirector("Fernando Meirelles"),
		testutil.WithRelease("2005-06-01"),
		testutil.WithRating(8.0, 200),
		testutil.WithPopularity(60),
	)
}

func TestScorer_Breakdown(t *testing.T) {
	profile := BuildProfile(twoMovieHistory(), fixedNow)
	c := candidate()
	pool := []models.EnrichedMovie{c}

	tests := []struct {
		lens models.Lens
		want Breakdown
	}{
		{
			models.LensSmart,
			Breakdown{Genre: 0.5, Director: 1, Rating: 0.95, Recency: 1, Popularity: 0.5, Bonus: 0.05, Total: 0.8125},
		},
		{
			models.LensQuality,
			Breakdown{Genre: 0.5, Director: 1, Rating: 0.8, Recency: 1, Popularity: 0.5, Bonus: 0.05, Total: 0.775},
		},
		{
			models.LensTrending,
			Breakdown{Genre: 0.5, Director: 1, Rating: 0.95, Recency: 0, Popularity: 1, Bonus: 0.05, Total: 0.7875},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.lens), func(t *testing.T) {
			got := NewScorer(profile, tt.lens, pool, fixedNow).Breakdown(&c)

			assert.InDelta(t, tt.want.Genre, got.Genre, 1e-9)
			assert.InDelta(t, tt.want.Director, got.Director, 1e-9)
			assert.InDelta(t, tt.want.Rating, got.Rating, 1e-9)
			assert.InDelta(t, tt.want.Recency, got.Recency, 1e-9)
			assert.InDelta(t, tt.want.Popularity, got.Popularity, 1e-9)
			assert.InDelta(t, tt.want.Bonus, got.Bonus, 1e-9)
			assert.InDelta(t, tt.want.Total, got.Total, 1e-9)
		})
	}
}

func TestScorer_TrendingRecencyDecays(t *testing.T) {
	profile := DefaultProfile(fixedNow)
	scorer := NewScorer(profile, models.LensTrending, nil, fixedNow)

	fresh := testutil.NewMovie(1, testutil.WithRelease("2026-10-18"))
	yearOld := testutil.NewMovie(2, testutil.WithRelease("2025-10-18"))
	undated := testutil.NewMovie(3, testutil.WithRelease(""))

	assert.InDelta(t, 1.0, scorer.Breakdown(&fresh).Recency, 0.01)
	assert.InDelta(t, 0.5, scorer.Breakdown(&yearOld).Recency, 0.01)
	assert.Equal(t, 0.0, scorer.Breakdown(&undated).Recency)
}

func TestScorer_GenreRichBonus(t *testing.T) {
	profile := DefaultProfile(fixedNow)
	scorer := NewScorer(profile, models.LensSmart, nil, fixedNow)

	rich := testutil.NewMovie(1, testutil.WithGenres(drama, comedy, action), testutil.WithRating(6.0, 50))
	assert.InDelta(t, BonusGenreRich, scorer.Breakdown(&rich).Bonus, 1e-9)
}

func TestRank_DropsWeakCandidatesAndKeepsTies(t *testing.T) {
	profile := DefaultProfile(fixedNow)
	weak := testutil.NewMovie(1,
		testutil.WithGenres(models.Genre{ID: 99, Name: "Documentário"}),
		testutil.WithRelease("1950-01-01"),
		testutil.WithRating(0, 0),
		testutil.WithPopularity(0),
	)
	a := testutil.NewMovie(2, testutil.WithGenres(drama))
	b := testutil.NewMovie(3, testutil.WithGenres(drama))
	best := testutil.NewMovie(4, testutil.WithGenres(drama, comedy, action), testutil.WithRating(7.5, 1000))

	ranked := Rank([]models.EnrichedMovie{weak, a, b, best}, profile, models.LensSmart, fixedNow)

	got := make([]int, len(ranked))
	for i, s := range ranked {
		got[i] = s.Movie.ID
	}
	assert.Equal(t, []int{4, 2, 3}, got)
	for _, s := range ranked {
		assert.GreaterOrEqual(t, s.Score, MinScore)
	}
}
