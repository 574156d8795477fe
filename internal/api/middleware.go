package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"xperious/result-storage/internal/config"
	"xperious/result-storage/internal/host"
)

// Constants for context keys
const (
	ContextHostKey  = "hostContext"
	RequestIDHeader = "X-Request-ID"
)

// HostContextMiddleware builds the per-request host.Context the storage plugin
// receives, tagging the request with an ID and logging it once it completes.
func HostContextMiddleware(cfg *config.Config, metrics host.Metrics, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLogger := logger.With().Str("request_id", requestID).Logger()
		c.Set(ContextHostKey, &host.Context{
			Config:  cfg,
			Metrics: metrics,
			Logger:  reqLogger,
			Request: host.Request{
				ID:          requestID,
				Path:        c.Request.URL.Path,
				AcceptsWebP: acceptsWebP(c.GetHeader("Accept")),
			},
		})

		c.Next()

		reqLogger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func acceptsWebP(accept string) bool {
	return strings.Contains(strings.ToLower(accept), "image/webp")
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// Helper function to get the host context (set by HostContextMiddleware)
func getHostContext(c *gin.Context) (*host.Context, error) {
	raw, exists := c.Get(ContextHostKey)
	if !exists {
		return nil, errors.New("host context not found")
	}
	hctx, ok := raw.(*host.Context)
	if !ok {
		return nil, errors.New("invalid host context type")
	}
	return hctx, nil
}
