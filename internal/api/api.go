// Package api exposes search, details, recommendations, the saved list and
// analytics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/glefebvre/cinefinder/internal/catalog"
	"github.com/glefebvre/cinefinder/internal/enricher"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/recommend"
	"github.com/glefebvre/cinefinder/internal/savedlist"
	"github.com/glefebvre/cinefinder/internal/search"
)

// Deps are the components the server routes to
type Deps struct {
	Catalog     *catalog.Client
	Enricher    *enricher.Enricher
	Search      *search.Aggregator
	Sessions    *recommend.SessionStore
	Saved       *savedlist.Repository
	DB          *gorm.DB
	Logger      *logger.Logger
	CORSOrigins []string
	// MaxConcurrency bounds detail lookups when hydrating history ids
	MaxConcurrency int
}

// Server represents the API server
type Server struct {
	deps   Deps
	router *gin.Engine
	logger *logger.FieldLogger

	mu   sync.Mutex
	http *http.Server
}

// NewServer creates a new API server instance. Saved-list changes reset
// every recommendation session.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.AppLogger()
	}
	if deps.MaxConcurrency < 1 {
		deps.MaxConcurrency = 8
	}

	router := gin.New()
	router.Use(
		requestIDMiddleware(),
		errorHandlerMiddleware(deps.Logger),
		metricsMiddleware(),
		loggingMiddleware(deps.Logger),
		cors.New(corsConfig(deps.CORSOrigins)),
	)

	s := &Server{
		deps:   deps,
		router: router,
		logger: deps.Logger.Component("api"),
	}

	if deps.Saved != nil && deps.Sessions != nil {
		deps.Saved.OnChange(func(c savedlist.Change) {
			deps.Sessions.ResetAll()
			s.logger.WithFields(map[string]interface{}{
				"change":   string(c.Kind),
				"movie_id": c.MovieID,
			}).Debug("saved list changed, recommendation sessions reset")
		})
	}

	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the API server on the specified port and blocks until it stops.
// A server stopped by Shutdown returns nil.
func (s *Server) Run(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{"port": port}).Info("api server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/genres", s.listGenres)

		v1.POST("/search", s.search)
		v1.POST("/search/upload", s.searchUpload)

		v1.GET("/movies/:id", s.getMovie)

		v1.POST("/recommendations", sessionMiddleware(), s.recommend)

		saved := v1.Group("/saved")
		{
			saved.GET("", s.listSaved)
			saved.POST("", s.addSaved)
			saved.PUT("/order", s.reorderSaved)
			saved.DELETE("/:id", s.removeSaved)
			saved.GET("/recommendations", sessionMiddleware(), s.recommendFromSaved)
		}

		v1.POST("/stats", s.stats)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderRequestID, HeaderSessionID},
		ExposeHeaders: []string{HeaderRequestID, HeaderSessionID},
		MaxAge:        12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
