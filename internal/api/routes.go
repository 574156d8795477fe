package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xperious/result-storage/internal/config"
	"xperious/result-storage/internal/host"
)

func SetupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	factory host.Factory,
	metrics host.Metrics,
	metricsHandler http.Handler, // nil disables the metrics endpoint
	logger zerolog.Logger,
) {
	resultHandler := NewResultHandler(factory, cfg.Server.MaxBodyBytes)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if metricsHandler != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(metricsHandler))
	}

	// --- Result Routes ---
	// The wildcard carries the full image path, e.g. /results/unsafe/300x200/example.com/a.jpg
	results := router.Group("/results")
	results.Use(HostContextMiddleware(cfg, metrics, logger))
	{
		results.GET("/*path", resultHandler.GetResult)
		results.HEAD("/*path", resultHandler.HeadResult)
		results.PUT("/*path", resultHandler.PutResult)
		results.DELETE("/*path", resultHandler.DeleteResult)
	}
}
