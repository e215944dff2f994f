package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/cinefinder/internal/config"
	"github.com/glefebvre/cinefinder/internal/models"
)

func TestOpen_SQLite(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "cinefinder.db")

	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })

	assert.NoError(t, HealthCheck(db))
	assert.True(t, db.Migrator().HasTable(&models.SavedMovie{}))
	assert.FileExists(t, cfg.Database.Path)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.Driver = "mysql"

	_, err := Open(cfg)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "cine",
		Password: "secret",
		DBName:   "cinefinder",
		SSLMode:  "require",
	})

	assert.Equal(t, "host=db port=5433 user=cine password=secret dbname=cinefinder sslmode=require", dsn)
}
