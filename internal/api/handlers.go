package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/glefebvre/cinefinder/internal/database"
	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/models"
	"github.com/glefebvre/cinefinder/internal/parser"
	"github.com/glefebvre/cinefinder/internal/stats"
	"github.com/glefebvre/cinefinder/internal/validation"
)

// MaxUploadBytes bounds an uploaded term file
const MaxUploadBytes = 1 << 20

func (s *Server) healthCheck(c *gin.Context) {
	if s.deps.DB != nil {
		if err := database.HealthCheck(s.deps.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (s *Server) listGenres(c *gin.Context) {
	genres, err := s.deps.Enricher.Genres().All(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenresResponse{Genres: genres})
}

func (s *Server) search(c *gin.Context) {
	var req SearchRequest
	if !s.bind(c, &req) {
		return
	}

	filters := models.DefaultFilters()
	if req.Filters != nil {
		filters = *req.Filters
	}

	results, err := s.deps.Search.SearchByTerms(c.Request.Context(), req.MovieTerms, req.DirectorTerms, filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) searchUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, apperrors.ValidationError("multipart field \"file\" is required"))
		return
	}
	format, err := parser.FormatFor(header.Filename)
	if err != nil {
		s.respondError(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		s.respondError(c, apperrors.ParseError("failed to read upload", err))
		return
	}
	defer file.Close()

	terms, err := parser.NewParserWithLogger(s.deps.Logger).Parse(file, format)
	if err != nil {
		s.respondError(c, err)
		return
	}

	results, err := s.deps.Search.SearchByTerms(c.Request.Context(), terms.MovieTerms, terms.DirectorTerms, models.DefaultFilters())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, UploadResponse{
		SearchResults: results,
		MovieTerms:    nonNil(terms.MovieTerms),
		DirectorTerms: nonNil(terms.DirectorTerms),
	})
}

func (s *Server) getMovie(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}

	movie, err := s.deps.Enricher.Enrich(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MovieResponse{
		EnrichedMovie: *movie,
		PosterURL:     s.deps.Catalog.ImageURL(movie.PosterPath, "w500"),
		BackdropURL:   s.deps.Catalog.ImageURL(movie.BackdropPath, "w1280"),
	})
}

func (s *Server) recommend(c *gin.Context) {
	var req RecommendRequest
	if !s.bind(c, &req) {
		return
	}

	history := req.History
	if len(req.HistoryIDs) > 0 {
		history = append(history, s.deps.Enricher.Hydrate(c.Request.Context(), req.HistoryIDs, s.deps.MaxConcurrency)...)
	}
	s.serveRecommendations(c, history, models.Lens(req.Lens))
}

func (s *Server) recommendFromSaved(c *gin.Context) {
	history, err := s.deps.Saved.History(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.serveRecommendations(c, history, models.Lens(c.Query("lens")))
}

func (s *Server) serveRecommendations(c *gin.Context, history []models.EnrichedMovie, lens models.Lens) {
	lens, err := models.ParseLens(string(lens))
	if err != nil {
		s.respondError(c, apperrors.ValidationError(err.Error()))
		return
	}

	sessionID := c.GetString(sessionIDKey)
	recs, err := s.deps.Sessions.Get(sessionID).Recommend(c.Request.Context(), history, lens)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, RecommendResponse{
		Lens:      lens,
		SessionID: sessionID,
		Movies:    recs,
	})
}

func (s *Server) listSaved(c *gin.Context) {
	saved, err := s.deps.Saved.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if saved == nil {
		saved = []models.SavedMovie{}
	}
	c.JSON(http.StatusOK, SavedListResponse{Movies: saved, Total: len(saved)})
}

func (s *Server) addSaved(c *gin.Context) {
	var req SaveRequest
	if !s.bind(c, &req) {
		return
	}

	saved, err := s.deps.Saved.Add(c.Request.Context(), req.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) removeSaved(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if err := s.deps.Saved.Remove(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) reorderSaved(c *gin.Context) {
	var req ReorderRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.deps.Saved.Reorder(c.Request.Context(), req.IDs); err != nil {
		s.respondError(c, err)
		return
	}
	s.listSaved(c)
}

func (s *Server) stats(c *gin.Context) {
	var req StatsRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, stats.Analyze(req.Movies))
}

// bind decodes and validates a JSON body, answering 400 on failure
func (s *Server) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.respondError(c, apperrors.Wrap(err, apperrors.CodeInvalidInput, "malformed request body"))
		return false
	}
	if err := validation.ValidateStruct(req); err != nil {
		s.respondError(c, err)
		return false
	}
	return true
}

func (s *Server) pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		s.respondError(c, apperrors.ValidationError("id must be a positive integer").WithContext("id", c.Param("id")))
		return 0, false
	}
	return id, true
}

// respondError writes err as an ErrorResponse. A catalog 404 is reported as
// NOT_FOUND rather than a gateway failure.
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	code := apperrors.GetErrorCode(err)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeCatalogUnavailable {
		if st, _ := appErr.Context["status"].(int); st == http.StatusNotFound {
			status, code = http.StatusNotFound, apperrors.CodeNotFound
		}
	}

	resp := ErrorResponse{Error: string(code), Message: err.Error()}
	if appErr != nil {
		resp.Message = appErr.Message
		resp.Fields = appErr.Context["fields"]
	}
	if status >= http.StatusInternalServerError {
		s.logger.WithFields(map[string]interface{}{
			"path": c.Request.URL.Path,
			"code": string(code),
		}).ErrorContext(c.Request.Context(), "request failed", err)
	}

	c.AbortWithStatusJSON(status, resp)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
