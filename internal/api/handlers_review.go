// handlers_review.go - Review session handlers
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/drawing-checker/backend/internal/models"
	"github.com/drawing-checker/backend/internal/session"
	"github.com/drawing-checker/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// UploadField is the multipart field carrying drawings and bundles
const UploadField = "drawings"

// MIMEMsgpack is the content type of msgpack responses
const MIMEMsgpack = "application/x-msgpack"

// ReviewHandlerImpl implements the ReviewHandler interface
type ReviewHandlerImpl struct {
	sessionMgr  SessionManager
	waitTimeout time.Duration
	log         *slog.Logger
}

// NewReviewHandler creates a new review handler instance
func NewReviewHandler(sessionMgr SessionManager, waitTimeout time.Duration, logger *slog.Logger) ReviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewHandlerImpl{
		sessionMgr:  sessionMgr,
		waitTimeout: waitTimeout,
		log:         logger.With("component", "api"),
	}
}

// HandleCreateReview stores the uploaded files of a new session and starts the
// review. With ?wait=true the response is the finished session result.
func (h *ReviewHandlerImpl) HandleCreateReview(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	files := form.File[UploadField]
	if len(files) == 0 {
		return NewValidationError(UploadField)
	}

	sess, err := h.sessionMgr.CreateSession()
	if err != nil {
		return NewInternalError("failed to create session", err)
	}

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.discard(sess.ID)
			return NewBadRequestError("failed to read upload "+fh.Filename, err)
		}
		_, err = h.sessionMgr.AddFile(sess.ID, fh.Filename, f)
		f.Close()
		if err != nil {
			h.discard(sess.ID)
			return NewBadRequestError("failed to store upload "+fh.Filename, err)
		}
	}

	if err := h.sessionMgr.Start(sess.ID); err != nil {
		h.discard(sess.ID)
		return sessionError(sess.ID, err)
	}
	h.log.Info("review submitted", "session", sess.ID, "files", len(files))

	if c.QueryParam("wait") != "true" {
		current, _ := h.sessionMgr.GetSession(sess.ID)
		return c.JSON(http.StatusAccepted, current)
	}

	ctx := c.Request().Context()
	if h.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.waitTimeout)
		defer cancel()
	}
	final, err := h.sessionMgr.Wait(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return NewTimeoutError("review still running, poll /api/reviews/" + sess.ID)
		}
		return NewInternalError("failed waiting for review", err)
	}
	return h.respondResult(c, final, func(r *models.SessionResult) error {
		return c.JSON(http.StatusOK, r)
	})
}

// discard drops a session whose upload failed before the review started.
func (h *ReviewHandlerImpl) discard(id string) {
	if err := h.sessionMgr.Discard(id); err != nil && !errors.Is(err, session.ErrAlreadyStarted) {
		h.log.Warn("failed to discard session", "session", id, "error", err)
	}
}

// HandleReviewStatus returns the current session state
func (h *ReviewHandlerImpl) HandleReviewStatus(c echo.Context) error {
	id := c.Param("id")
	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleReviewResult returns the aggregated result as JSON
func (h *ReviewHandlerImpl) HandleReviewResult(c echo.Context) error {
	return h.result(c, func(r *models.SessionResult) error {
		return c.JSON(http.StatusOK, r)
	})
}

// HandleReviewResultMsgpack returns the aggregated result encoded with msgpack
func (h *ReviewHandlerImpl) HandleReviewResultMsgpack(c echo.Context) error {
	return h.result(c, func(r *models.SessionResult) error {
		data, err := msgpack.Marshal(r)
		if err != nil {
			return NewInternalError("failed to encode result", err)
		}
		return c.Blob(http.StatusOK, MIMEMsgpack, data)
	})
}

func (h *ReviewHandlerImpl) result(c echo.Context, write func(*models.SessionResult) error) error {
	id := c.Param("id")
	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	return h.respondResult(c, sess, write)
}

func (h *ReviewHandlerImpl) respondResult(c echo.Context, sess *models.ReviewSession, write func(*models.SessionResult) error) error {
	switch sess.Status {
	case models.SessionStatusComplete:
		result, ok := h.sessionMgr.GetResult(sess.ID)
		if !ok {
			return NewNotFoundError("result", sess.ID)
		}
		return write(result)
	case models.SessionStatusError:
		return NewInternalError("review failed", errors.New(sess.Error))
	default:
		return NewConflictError("review not complete: " + string(sess.Status))
	}
}

// HandleDownloadFile serves a generated report or annotated drawing, falling
// back to the uploaded source files
func (h *ReviewHandlerImpl) HandleDownloadFile(c echo.Context) error {
	id := c.Param("id")
	name := c.Param("name")
	if name == "" || storage.SafeName(name) != name {
		return NewValidationError("name")
	}
	if _, ok := h.sessionMgr.GetSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	for _, dir := range h.dirs(id) {
		path := filepath.Join(dir, name)
		if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
			return c.Attachment(path, name)
		}
	}
	return NewNotFoundError("file", name)
}

func (h *ReviewHandlerImpl) dirs(id string) []string {
	var dirs []string
	if dir, err := h.sessionMgr.ReportsDir(id); err == nil {
		dirs = append(dirs, dir)
	}
	if dir, err := h.sessionMgr.SessionDir(id); err == nil {
		dirs = append(dirs, dir)
	}
	return dirs
}

// sessionError maps session manager errors to API errors
func sessionError(id string, err error) *APIError {
	if errors.Is(err, session.ErrNotFound) {
		return NewNotFoundError("session", id)
	}
	if errors.Is(err, session.ErrAlreadyStarted) {
		return NewConflictError("session already started")
	}
	return NewInternalError("session error", err)
}
