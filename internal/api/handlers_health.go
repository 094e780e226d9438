// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ReferenceStats reports the size of the loaded reference corpora
type ReferenceStats struct {
	Specs    int `json:"specs"`
	Drawings int `json:"drawings"`
}

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	references ReferenceStats
	startedAt  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, references ReferenceStats) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		references: references,
		startedAt:  time.Now(),
	}
}

// HandleHealth reports server health along with the loaded reference corpus sizes
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       h.version,
		"references":    h.references,
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
