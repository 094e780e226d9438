// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"time"

	"github.com/drawing-checker/backend/internal/metrics"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	SessionMgr  SessionManager
	History     HistoryStore // nil disables /api/reviews/history
	Metrics     *metrics.Metrics
	References  ReferenceStats
	WaitTimeout time.Duration
	Version     string
	Logger      *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Review   ReviewHandler
	History  HistoryHandler
	Progress ProgressHandler
	metrics  *metrics.Metrics
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.References),
		Review:   NewReviewHandler(deps.SessionMgr, deps.WaitTimeout, deps.Logger),
		History:  NewHistoryHandler(deps.History),
		Progress: NewWebSocketHandler(deps.SessionMgr, deps.Logger),
		metrics:  deps.Metrics,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check and metrics
	e.GET("/api/health", handlers.Health.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(handlers.metrics.Handler()))

	// Review session routes
	reviewGroup := e.Group("/api/reviews")
	reviewGroup.POST("", handlers.Review.HandleCreateReview)
	reviewGroup.GET("/history", handlers.History.HandleHistory)
	reviewGroup.GET("/:id", handlers.Review.HandleReviewStatus)
	reviewGroup.GET("/:id/result", handlers.Review.HandleReviewResult)
	reviewGroup.GET("/:id/result/msgpack", handlers.Review.HandleReviewResultMsgpack)
	reviewGroup.GET("/:id/files/:name", handlers.Review.HandleDownloadFile)

	// Live progress
	reviewGroup.GET("/:id/ws", handlers.Progress.HandleProgress)
}
