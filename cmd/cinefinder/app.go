package main

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/glefebvre/cinefinder/internal/cache"
	"github.com/glefebvre/cinefinder/internal/catalog"
	"github.com/glefebvre/cinefinder/internal/config"
	"github.com/glefebvre/cinefinder/internal/database"
	"github.com/glefebvre/cinefinder/internal/enricher"
	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/recommend"
	"github.com/glefebvre/cinefinder/internal/savedlist"
	"github.com/glefebvre/cinefinder/internal/search"
)

// app holds the services a command works with
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	catalog  *catalog.Client
	enricher *enricher.Enricher
	search   *search.Aggregator
	engine   *recommend.Engine
	db       *gorm.DB
	saved    *savedlist.Repository

	closeCache func() error
}

// newApp wires the catalog stack and, when withDB is set, the saved list
func newApp(ctx context.Context, withDB bool) (*app, error) {
	cfg := config.Get()
	if err := cfg.RequireCatalog(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfig, "catalog is not configured")
	}
	log := logger.AppLogger()

	store, closeCache, err := cache.New(ctx, cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfig, "failed to open response cache")
	}

	client := catalog.NewClient(catalog.ConfigFrom(cfg), catalog.WithCache(store), catalog.WithLogger(log))
	enr := enricher.New(client, enricher.NewGenreRegistry(client),
		enricher.WithRetryAttempts(cfg.Search.EnrichRetryAttempts),
		enricher.WithLogger(log),
	)

	a := &app{
		cfg:        cfg,
		log:        log,
		catalog:    client,
		enricher:   enr,
		search:     search.New(client, enr, search.WithConfig(search.ConfigFrom(cfg)), search.WithLogger(log)),
		engine:     recommend.New(client, enr, recommend.WithConfig(recommend.ConfigFrom(cfg)), recommend.WithLogger(log)),
		closeCache: closeCache,
	}

	if withDB {
		db, err := database.Open(cfg)
		if err != nil {
			closeCache()
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			database.Close(db)
			closeCache()
			return nil, err
		}
		a.db = db
		a.saved = savedlist.New(db, enr, savedlist.WithGenres(enr.Genres()), savedlist.WithLogger(log))
	}

	log.WithFields(map[string]interface{}{
		"cache":    store.Name(),
		"database": withDB,
		"region":   client.Region(),
	}).Debug("services initialised")

	return a, nil
}

// Close releases the database and cache connections
func (a *app) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, database.Close(a.db))
	}
	errs = append(errs, a.closeCache())
	return errors.Join(errs...)
}
