// handlers_history.go - Review history handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// MaxHistoryLimit caps the number of rows one request may return
const MaxHistoryLimit = 500

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	history HistoryStore
}

// NewHistoryHandler creates a new history handler. A nil store disables the endpoint.
func NewHistoryHandler(history HistoryStore) HistoryHandler {
	return &HistoryHandlerImpl{history: history}
}

// HandleHistory returns recent reviewed drawings, optionally for one identity
func (h *HistoryHandlerImpl) HandleHistory(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("review history is disabled")
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return NewValidationError("limit")
		}
		limit = min(n, MaxHistoryLimit)
	}

	entries, err := h.history.Recent(c.Request().Context(), c.QueryParam("identity"), limit)
	if err != nil {
		return NewInternalError("failed to query history", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
