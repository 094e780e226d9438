package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/drawing-checker/backend/internal/metrics"
	"github.com/drawing-checker/backend/internal/models"
	"github.com/drawing-checker/backend/internal/review"
	"github.com/drawing-checker/backend/internal/session"
	"github.com/drawing-checker/backend/internal/storage"
	"github.com/drawing-checker/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const answer = "Drawing type: Valve Chamber\n\nResult: ✅\n\nResult: ⚠️ levels unclear\n\nRisk Level: High"

type testServer struct {
	e       *echo.Echo
	manager *session.Manager
	root    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(root, "uploads"), filepath.Join(root, "reports"))
	require.NoError(t, err)
	history, err := storage.OpenHistory(filepath.Join(root, "history.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	m := metrics.New()
	mgr := session.NewManager(session.Options{
		Store:    store,
		History:  history,
		Assessor: testutil.NewFakeAssessor(answer),
		Metrics:  m,
		Artifacts: func(reportsDir string) (review.ReportWriter, review.Annotator) {
			return testutil.NewFakeReportWriter(reportsDir), testutil.NewFakeAnnotator()
		},
	})
	t.Cleanup(mgr.Close)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(e, NewHandlers(&Dependencies{
		SessionMgr:  mgr,
		History:     history,
		Metrics:     m,
		References:  ReferenceStats{Specs: 2, Drawings: 5},
		WaitTimeout: 10 * time.Second,
		Version:     "test",
	}))
	return &testServer{e: e, manager: mgr, root: root}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, query string, files map[string][]byte) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile(UploadField, name)
		require.NoError(t, err)
		part.Write(data)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/reviews"+query, body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func (s *testServer) completedSession(t *testing.T) string {
	t.Helper()
	rec := s.do(uploadRequest(t, "?wait=true", map[string][]byte{
		"DR-CV-100-C1.pdf": testutil.MinimalPDF("first"),
		"DR-CV-100-C2.pdf": testutil.MinimalPDF("second"),
		"corrupt.pdf":      []byte("nope"),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.SessionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result.SessionID
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"specs":2`)
	assert.Contains(t, rec.Body.String(), `"uptimeSeconds"`)
}

func TestHandleCreateReview_Wait(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(uploadRequest(t, "?wait=true", map[string][]byte{
		"DR-CV-100-C1.pdf": testutil.MinimalPDF("first"),
		"DR-CV-100-C2.pdf": testutil.MinimalPDF("second"),
		"corrupt.pdf":      []byte("nope"),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.SessionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.SessionID)
	assert.ElementsMatch(t, []string{"DR-CV-100-C1.pdf", "DR-CV-100-C2.pdf"}, result.DrawingIndex["DR-CV-100"])
	require.Len(t, result.Reports, 2)
	assert.Equal(t, "DR-CV-100-C2.pdf", result.Reports[0].Drawing)
	assert.Equal(t, 1.5, result.Reports[0].Outcome.Score)
	assert.Equal(t, models.ErrExtraction, result.Reports[1].Error.Kind)
	assert.Equal(t, []models.SummaryRow{{Drawing: "DR-CV-100-C2.pdf", Score: 1.5, Risk: models.RiskHigh}}, result.Summary)
}

func TestHandleCreateReview_Async(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(uploadRequest(t, "", map[string][]byte{
		"DR-EL-1-P1.dxf": testutil.DXF("PANEL"),
	}))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var sess models.ReviewSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, 1, sess.FileCount)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.manager.Wait(ctx, sess.ID)
	require.NoError(t, err)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/"+sess.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"complete"`)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/"+sess.ID+"/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"drawing":"DR-EL-1-P1.dxf"`)
}

func TestHandleCreateReview_NoFiles(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(uploadRequest(t, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	req := httptest.NewRequest(http.MethodPost, "/api/reviews", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateReview_BadUploadDiscardsSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(uploadRequest(t, "?wait=true", map[string][]byte{
		"DR-CV-100-C1.pdf": testutil.MinimalPDF("first"),
		"???":              []byte("unnamed"),
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to store upload ???")

	for _, dir := range []string{"uploads", "reports"} {
		entries, err := os.ReadDir(filepath.Join(s.root, dir))
		require.NoError(t, err)
		assert.Empty(t, entries, dir)
	}
}

func TestHandleReviewResult_States(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/unknown/result", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	pending, err := s.manager.CreateSession()
	require.NoError(t, err)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/"+pending.ID+"/result", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending")
}

func TestHandleReviewResultMsgpack(t *testing.T) {
	s := newTestServer(t)
	id := s.completedSession(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/"+id+"/result/msgpack", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEMsgpack, rec.Header().Get(echo.HeaderContentType))

	var result models.SessionResult
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, id, result.SessionID)
	assert.Len(t, result.Reports, 2)
	assert.Len(t, result.Summary, 1)
}

func TestHandleDownloadFile(t *testing.T) {
	s := newTestServer(t)
	id := s.completedSession(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/"+id+"/files/DR-CV-100-C2.report.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DR-CV-100-C2 1.5/30 High")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")

	// Source files are served too.
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/"+id+"/files/drawing_index.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DR-CV-100")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/"+id+"/files/missing.docx", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/"+id+"/files/a%20b.docx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	s := newTestServer(t)
	s.completedSession(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/history?identity=DR-CV-100&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries []storage.HistoryEntry `json:"entries"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "DR-CV-100-C2.pdf", body.Entries[0].Drawing)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reviews/history?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistory_Disabled(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/reviews/history", nil), httptest.NewRecorder())
	err := NewHistoryHandler(nil).HandleHistory(c)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.completedSession(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `drawing_checker_reviews_total{outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `drawing_checker_reviews_total{outcome="extraction"} 1`)
	assert.Contains(t, rec.Body.String(), `drawing_checker_sessions_total{status="complete"} 1`)
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	NewErrorHandler(false)(assert.AnError, c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWN_ERROR")
	assert.NotContains(t, rec.Body.String(), "details")

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), c)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "HTTP_ERROR")

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(NewNotFoundError("session", "x"), c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "session not found: x")

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(fmt.Errorf("wrapped: %w", models.NewExtractionError("a.pdf", assert.AnError)), c)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"EXTRACTION"`)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(context.DeadlineExceeded, c)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
