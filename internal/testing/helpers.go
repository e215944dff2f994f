package testing

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glefebvre/cinefinder/internal/models"
)

// TestDB creates an in-memory SQLite database for testing
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// every pooled connection would otherwise open its own empty :memory: database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.SavedMovie{}); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

// NewMovie builds an enriched movie fixture
func NewMovie(id int, overrides ...func(*models.EnrichedMovie)) models.EnrichedMovie {
	movie := models.EnrichedMovie{
		CatalogItem: models.CatalogItem{
			ID:          id,
			Title:       fmt.Sprintf("Movie %d", id),
			ReleaseDate: "2015-06-01",
			GenreIDs:    []int{18},
			Genres:      []models.Genre{{ID: 18, Name: "Drama"}},
			VoteAverage: 7.0,
			VoteCount:   500,
			Popularity:  50,
		},
		Director:          "Walter Salles",
		Cast:              "Fernanda Montenegro, Vinícius de Oliveira",
		StreamingServices: "Netflix (Incluído)",
		Runtime:           110,
	}

	for _, override := range overrides {
		override(&movie)
	}
	return movie
}

// CreateSavedMovie persists a saved-list entry fixture
func CreateSavedMovie(db *gorm.DB, overrides ...func(*models.SavedMovie)) *models.SavedMovie {
	saved := models.NewSavedMovie(NewMovie(int(time.Now().UnixNano() % 1_000_000)))
	saved.SavedAt = time.Now()

	for _, override := range overrides {
		override(&saved)
	}

	db.Create(&saved)
	return &saved
}

// AssertCount verifies the count of records in a table
func AssertCount(t *testing.T, db *gorm.DB, model interface{}, expected int64, message string) {
	t.Helper()
	var count int64
	db.Model(model).Count(&count)
	if count != expected {
		t.Fatalf("%s: expected count %d, got %d", message, expected, count)
	}
}

// WithGenres sets resolved genres (and raw ids) on a movie fixture
func WithGenres(genres ...models.Genre) func(*models.EnrichedMovie) {
	return func(m *models.EnrichedMovie) {
		m.Genres = genres
		m.GenreIDs = make([]int, len(genres))
		for i, g := range genres {
			m.GenreIDs[i] = g.ID
		}
	}
}

// WithDirector sets the director of a movie fixture
func WithDirector(name string) func(*models.EnrichedMovie) {
	return func(m *models.EnrichedMovie) {
		m.Director = name
	}
}

// WithRelease sets the release date of a movie fixture
func WithRelease(date string) func(*models.EnrichedMovie) {
	return func(m *models.EnrichedMovie) {
		m.ReleaseDate = date
	}
}

// WithRating sets vote average and count of a movie fixture
func WithRating(avg float64, count int) func(*models.EnrichedMovie) {
	return func(m *models.EnrichedMovie) {
		m.VoteAverage = avg
		m.VoteCount = count
	}
}

// WithPopularity sets the popularity of a movie fixture
func WithPopularity(p float64) func(*models.EnrichedMovie) {
	return func(m *models.EnrichedMovie) {
		m.Popularity = p
	}
}

// WithMovieID sets the catalog id of a saved movie fixture
func WithMovieID(id int) func(*models.SavedMovie) {
	return func(s *models.SavedMovie) {
		s.MovieID = id
	}
}

// WithPosition sets the ordering key of a saved movie fixture
func WithPosition(pos int) func(*models.SavedMovie) {
	return func(s *models.SavedMovie) {
		s.Position = pos
	}
}
