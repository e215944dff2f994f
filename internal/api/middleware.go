package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/metrics"
)

// Headers carrying correlation ids
const (
	HeaderRequestID = "X-Request-ID"
	HeaderSessionID = "X-Session-ID"
)

const sessionIDKey = "session_id"

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// sessionMiddleware resolves the recommendation session id, minting one when
// the client did not send it. The id is echoed back in the response.
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(HeaderSessionID)
		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = uuid.New().String()
		}
		c.Set(sessionIDKey, sessionID)
		c.Header(HeaderSessionID, sessionID)
		c.Request = c.Request.WithContext(logger.ContextWithSessionID(c.Request.Context(), sessionID))
		c.Next()
	}
}

// errorHandlerMiddleware handles panics
func errorHandlerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Component("api").WithFields(map[string]interface{}{
					"panic": rec,
					"path":  c.Request.URL.Path,
				}).ErrorContext(c.Request.Context(), "recovered from panic", nil)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "INTERNAL_ERROR",
					Message: "an unexpected error occurred",
				})
			}
		}()
		c.Next()
	}
}

// metricsMiddleware records request counts and latency per route template
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// loggingMiddleware writes one access log line per request
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	access := log.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/health" {
			return
		}
		entry := access.WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.WarnContext(c.Request.Context(), "request failed")
			return
		}
		entry.InfoContext(c.Request.Context(), "request served")
	}
}
