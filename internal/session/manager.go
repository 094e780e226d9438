package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/drawing-checker/backend/internal/assess"
	"github.com/drawing-checker/backend/internal/checklist"
	"github.com/drawing-checker/backend/internal/drawing"
	"github.com/drawing-checker/backend/internal/extract"
	"github.com/drawing-checker/backend/internal/metrics"
	"github.com/drawing-checker/backend/internal/models"
	"github.com/drawing-checker/backend/internal/reference"
	"github.com/drawing-checker/backend/internal/report"
	"github.com/drawing-checker/backend/internal/review"
	"github.com/drawing-checker/backend/internal/storage"
)

// MaxSessions limits how many sessions are kept in memory.
const MaxSessions = 50

// DefaultRetention is how long session folders are kept on disk.
const DefaultRetention = 7 * 24 * time.Hour

// IndexFileName is written into every session folder.
const IndexFileName = "drawing_index.json"

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// ErrAlreadyStarted is returned when Start is called twice for one session.
var ErrAlreadyStarted = errors.New("session already started")

// ArtifactFactory returns the report writer and annotator of one session.
type ArtifactFactory func(reportsDir string) (review.ReportWriter, review.Annotator)

// DefaultArtifacts writes DOCX reports and annotated PDFs into reportsDir.
func DefaultArtifacts(reportsDir string) (review.ReportWriter, review.Annotator) {
	return report.NewDocxWriter(reportsDir), report.NewPDFAnnotator(reportsDir)
}

// Options wires the manager to storage and the review pipeline.
type Options struct {
	Store         storage.Store
	History       *storage.History // optional
	Extractors    *extract.Registry
	Library       *reference.Library
	Checklist     *checklist.Checklist
	Assessor      assess.Assessor
	Artifacts     ArtifactFactory
	ExcerptLength int
	MaxConcurrent int
	Retention     time.Duration
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Manager handles review sessions from upload to result.
type Manager struct {
	opts     Options
	log      *slog.Logger
	sessions map[string]*SessionState
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SessionState holds the session metadata, its result and progress subscribers.
type SessionState struct {
	Session     *models.ReviewSession
	Result      *models.SessionResult
	started     bool
	done        chan struct{}
	subscribers map[chan models.ReviewSession]struct{}
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.Extractors == nil {
		opts.Extractors = extract.NewRegistry()
	}
	if opts.Library == nil {
		opts.Library = reference.Empty()
	}
	if opts.Checklist == nil {
		opts.Checklist = checklist.Default()
	}
	if opts.Artifacts == nil {
		opts.Artifacts = DefaultArtifacts
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		log:      opts.Logger.With("component", "session"),
		sessions: make(map[string]*SessionState),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// CreateSession creates an empty pending session and its folders. Session folders
// past the retention period are removed first.
func (m *Manager) CreateSession() (*models.ReviewSession, error) {
	m.CleanupOldSessions(m.opts.Retention)
	m.cleanupOldSessionsIfNeeded()

	now := time.Now()
	id, err := m.opts.Store.CreateSession(now)
	if err != nil {
		return nil, err
	}

	session := models.NewReviewSession(id, now)
	m.mu.Lock()
	m.sessions[id] = &SessionState{
		Session:     session,
		done:        make(chan struct{}),
		subscribers: make(map[chan models.ReviewSession]struct{}),
	}
	m.mu.Unlock()

	m.log.Info("session created", "session", shortID(id))
	return m.snapshot(id)
}

// AddFile stores one uploaded file in a pending session.
func (m *Manager) AddFile(id, name string, r io.Reader) (*models.FileInfo, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	started := ok && state.started
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if started {
		return nil, ErrAlreadyStarted
	}

	info, err := m.opts.Store.Save(id, name, r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	state.Session.FileCount++
	m.mu.Unlock()
	return info, nil
}

// Discard drops a session that was never started, together with its folders.
// Used when an upload fails before the review could begin.
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if state.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	delete(m.sessions, id)
	for ch := range state.subscribers {
		close(ch)
	}
	state.subscribers = nil
	close(state.done)
	m.mu.Unlock()

	m.log.Info("session discarded", "session", shortID(id))
	return m.opts.Store.RemoveSession(id)
}

// Start begins reviewing the session in a background goroutine.
func (m *Manager) Start(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if state.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	state.started = true
	state.Session.Status = models.SessionStatusReviewing
	m.mu.Unlock()

	m.opts.Metrics.SessionStarted()
	m.wg.Add(1)
	go m.runReview(id)
	return nil
}

func (m *Manager) runReview(id string) {
	log := m.log.With("session", shortID(id))
	start := time.Now()

	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("review panicked", "panic", r)
			m.finish(id, nil, fmt.Errorf("review panicked: %v", r), start)
		}
	}()

	result, err := m.review(id, log)
	m.finish(id, result, err, start)
}

func (m *Manager) review(id string, log *slog.Logger) (*models.SessionResult, error) {
	if names, err := m.opts.Store.ExpandBundles(id); err != nil {
		return nil, fmt.Errorf("expanding bundles: %w", err)
	} else if len(names) > 0 {
		log.Info("bundles expanded", "files", len(names))
	}

	dir, err := m.opts.Store.SessionDir(id)
	if err != nil {
		return nil, err
	}
	reportsDir, err := m.opts.Store.ReportsDir(id)
	if err != nil {
		return nil, err
	}

	files, err := drawing.ListSessionFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("listing session files: %w", err)
	}
	sel := drawing.Select(files)
	if err := writeIndex(dir, sel.Index); err != nil {
		return nil, err
	}

	m.update(id, func(s *models.ReviewSession) {
		s.DrawingCount = len(sel.Items)
		s.Progress = 5
	})
	log.Info("review started", "files", len(files), "drawings", len(sel.Items))

	writer, annotator := m.opts.Artifacts(reportsDir)
	agg := &review.Aggregator{
		Pipeline: &review.Pipeline{
			Extractors:    m.opts.Extractors,
			Library:       m.opts.Library,
			Checklist:     m.opts.Checklist,
			Assessor:      m.opts.Assessor,
			Writer:        writer,
			Annotator:     annotator,
			ExcerptLength: m.opts.ExcerptLength,
		},
		MaxConcurrent: m.opts.MaxConcurrent,
		Metrics:       m.opts.Metrics,
		Logger:        m.opts.Logger,
		Progress: func(done, total int) {
			m.update(id, func(s *models.ReviewSession) {
				s.ReviewedCount = done
				s.Progress = 5 + float64(done)*90/float64(total)
			})
		},
	}

	result := agg.Run(m.ctx, id, sel)

	if m.opts.History != nil {
		if err := m.opts.History.Record(context.Background(), result, time.Now()); err != nil {
			log.Warn("failed to record history", "error", err)
		}
	}
	return result, nil
}

// writeIndex saves the identity index as JSON into the session folder.
func writeIndex(dir string, index map[string][]string) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding drawing index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFileName), data, 0644); err != nil {
		return fmt.Errorf("writing drawing index: %w", err)
	}
	return nil
}

func (m *Manager) finish(id string, result *models.SessionResult, err error, start time.Time) {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	select {
	case <-state.done:
		m.mu.Unlock()
		return
	default:
	}

	s := state.Session
	s.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		s.Status = models.SessionStatusError
		s.Error = err.Error()
	} else {
		state.Result = result
		s.Status = models.SessionStatusComplete
		s.Progress = 100
		s.ReviewedCount = len(result.Reports)
		s.FailedCount = result.Failed()
	}
	snapshot := *s
	for ch := range state.subscribers {
		sendFinal(ch, snapshot)
		close(ch)
	}
	state.subscribers = nil
	close(state.done)
	m.mu.Unlock()

	m.opts.Metrics.SessionFinished(string(snapshot.Status))
	if err != nil {
		m.log.Error("review failed", "session", shortID(id), "error", err)
		return
	}
	m.log.Info("review complete", "session", shortID(id),
		"drawings", snapshot.DrawingCount, "failed", snapshot.FailedCount, "ms", snapshot.ProcessingTimeMs)
}

// update applies fn to a running session and notifies subscribers.
func (m *Manager) update(id string, fn func(*models.ReviewSession)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok || state.Session.Terminal() {
		return
	}
	fn(state.Session)
	for ch := range state.subscribers {
		trySend(ch, *state.Session)
	}
}

// trySend drops the update when the subscriber is not keeping up.
func trySend(ch chan models.ReviewSession, s models.ReviewSession) {
	select {
	case ch <- s:
	default:
	}
}

// sendFinal delivers the terminal snapshot, dropping the oldest queued update
// when the buffer is full. Only the manager sends, under m.mu, so one free slot
// is enough.
func sendFinal(ch chan models.ReviewSession, s models.ReviewSession) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- s
}

func (m *Manager) snapshot(id string) (*models.ReviewSession, error) {
	s, ok := m.GetSession(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetSession returns a copy of the session by ID.
func (m *Manager) GetSession(id string) (*models.ReviewSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	s := *state.Session
	return &s, true
}

// GetResult returns the result of a completed session.
func (m *Manager) GetResult(id string) (*models.SessionResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Result == nil {
		return nil, false
	}
	return state.Result, true
}

// Wait blocks until the session is terminal or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*models.ReviewSession, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	select {
	case <-state.done:
		return m.snapshot(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe returns a channel of session updates. The channel is closed after the
// terminal update; cancel stops the subscription early.
func (m *Manager) Subscribe(id string) (<-chan models.ReviewSession, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, nil, ErrNotFound
	}

	ch := make(chan models.ReviewSession, 16)
	ch <- *state.Session
	if state.Session.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	state.subscribers[ch] = struct{}{}
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := state.subscribers[ch]; ok {
			delete(state.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// SessionDir returns the folder holding a session's source files.
func (m *Manager) SessionDir(id string) (string, error) {
	return m.opts.Store.SessionDir(id)
}

// ReportsDir returns the folder holding a session's generated artifacts.
func (m *Manager) ReportsDir(id string) (string, error) {
	return m.opts.Store.ReportsDir(id)
}

// History returns the review history store, or nil when none is configured.
func (m *Manager) History() *storage.History {
	return m.opts.History
}

// cleanupOldSessionsIfNeeded removes the oldest finished sessions from memory when
// at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	var finished []*models.ReviewSession
	for _, state := range m.sessions {
		if state.Session.Terminal() {
			finished = append(finished, state.Session)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].CreatedAt.Before(finished[j].CreatedAt) })

	toFree := len(m.sessions) - MaxSessions + 1
	for i := 0; i < toFree && i < len(finished); i++ {
		delete(m.sessions, finished[i].ID)
		m.log.Info("evicted finished session", "session", shortID(finished[i].ID))
	}
}

// CleanupOldSessions removes finished sessions older than maxAge from memory and
// their folders from disk. Running sessions are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	now := time.Now()
	cutoff := now.Add(-maxAge)

	m.mu.Lock()
	for id, state := range m.sessions {
		if state.Session.Terminal() && state.Session.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	if removed := m.opts.Store.CleanupOlderThan(maxAge, now); removed > 0 {
		m.log.Info("removed aged session folders", "count", removed)
	}
}

// StartCleanup runs CleanupOldSessions on every tick until ctx is done.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupOldSessions(m.opts.Retention)
			}
		}
	}()
}

// Close cancels running reviews and waits for them to record their results.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
