// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/drawing-checker/backend/internal/models"
	"github.com/drawing-checker/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ReviewHandler handles review session operations
type ReviewHandler interface {
	HandleCreateReview(c echo.Context) error
	HandleReviewStatus(c echo.Context) error
	HandleReviewResult(c echo.Context) error
	HandleReviewResultMsgpack(c echo.Context) error
	HandleDownloadFile(c echo.Context) error
}

// HistoryHandler handles the cross-session review history
type HistoryHandler interface {
	HandleHistory(c echo.Context) error
}

// ProgressHandler streams session progress over WebSocket
type ProgressHandler interface {
	HandleProgress(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	CreateSession() (*models.ReviewSession, error)
	AddFile(id, name string, r io.Reader) (*models.FileInfo, error)
	Start(id string) error
	Discard(id string) error
	GetSession(id string) (*models.ReviewSession, bool)
	GetResult(id string) (*models.SessionResult, bool)
	Wait(ctx context.Context, id string) (*models.ReviewSession, error)
	Subscribe(id string) (<-chan models.ReviewSession, func(), error)
	SessionDir(id string) (string, error)
	ReportsDir(id string) (string, error)
}

// HistoryStore is the read side of the review history
type HistoryStore interface {
	Recent(ctx context.Context, identity string, limit int) ([]storage.HistoryEntry, error)
}
