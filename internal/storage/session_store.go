// Package storage manages review session folders on the local filesystem and the
// review history database.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/drawing-checker/backend/internal/models"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// SessionIDLayout is the timestamp prefix of every session id.
const SessionIDLayout = "20060102150405"

// File kinds recorded on FileInfo.
const (
	KindDrawing = "drawing"
	KindBundle  = "bundle"
	KindOther   = "other"
)

// Store defines the interface for session file storage.
type Store interface {
	CreateSession(now time.Time) (string, error)
	Save(sessionID, name string, r io.Reader) (*models.FileInfo, error)
	ExpandBundles(sessionID string) ([]string, error)
	SessionDir(sessionID string) (string, error)
	ReportsDir(sessionID string) (string, error)
	Files(sessionID string) ([]*models.FileInfo, error)
	RemoveSession(sessionID string) error
	CleanupOlderThan(maxAge time.Duration, now time.Time) int
}

// LocalStore implements Store using one folder per session under uploadDir and
// one report folder per session under reportDir.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	reportDir string
	files     map[string][]*models.FileInfo
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir, reportDir string) (*LocalStore, error) {
	for _, dir := range []string{uploadDir, reportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	return &LocalStore{
		uploadDir: uploadDir,
		reportDir: reportDir,
		files:     make(map[string][]*models.FileInfo),
	}, nil
}

// NewSessionID returns "<timestamp>_<8 hex chars>".
func NewSessionID(now time.Time) string {
	return now.Format(SessionIDLayout) + "_" + uuid.New().String()[:8]
}

// SessionTime parses the creation time encoded in a session id.
func SessionTime(sessionID string) (time.Time, bool) {
	prefix, _, _ := strings.Cut(sessionID, "_")
	t, err := time.ParseInLocation(SessionIDLayout, prefix, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CreateSession creates the session and report folders.
func (s *LocalStore) CreateSession(now time.Time) (string, error) {
	id := NewSessionID(now)
	for _, dir := range []string{filepath.Join(s.uploadDir, id), filepath.Join(s.reportDir, id)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating session folder: %w", err)
		}
	}

	s.mu.Lock()
	s.files[id] = nil
	s.mu.Unlock()

	return id, nil
}

// Save writes an uploaded file into the session folder under a sanitised name.
func (s *LocalStore) Save(sessionID, name string, r io.Reader) (*models.FileInfo, error) {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return nil, err
	}

	safe := SafeName(name)
	if safe == "" {
		return nil, fmt.Errorf("invalid file name: %q", name)
	}
	path := filepath.Join(dir, safe)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         uuid.New().String(),
		Name:       safe,
		Size:       size,
		UploadedAt: time.Now(),
		Kind:       DetectKind(path),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[sessionID] = append(s.files[sessionID], info)

	return info, nil
}

// ExpandBundles extracts every zip bundle saved in the session into the session
// folder and returns the extracted names.
func (s *LocalStore) ExpandBundles(sessionID string) ([]string, error) {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var bundles []string
	for _, info := range s.files[sessionID] {
		if info.Kind == KindBundle {
			bundles = append(bundles, info.Name)
		}
	}
	s.mu.RUnlock()

	var extracted []string
	for _, name := range bundles {
		names, err := ExtractZip(filepath.Join(dir, name), dir)
		extracted = append(extracted, names...)
		if err != nil {
			return extracted, fmt.Errorf("expanding bundle %s: %w", name, err)
		}
	}
	return extracted, nil
}

// SessionDir returns the folder holding a session's source files.
func (s *LocalStore) SessionDir(sessionID string) (string, error) {
	return s.existing(s.uploadDir, sessionID)
}

// ReportsDir returns the folder holding a session's generated reports.
func (s *LocalStore) ReportsDir(sessionID string) (string, error) {
	return s.existing(s.reportDir, sessionID)
}

func (s *LocalStore) existing(root, sessionID string) (string, error) {
	if sessionID == "" || SafeName(sessionID) != sessionID {
		return "", fmt.Errorf("invalid session id: %q", sessionID)
	}
	dir := filepath.Join(root, sessionID)
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return "", fmt.Errorf("session not found: %s", sessionID)
	}
	return dir, nil
}

// Files returns the uploads recorded for a session.
func (s *LocalStore) Files(sessionID string) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, ok := s.files[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	out := make([]*models.FileInfo, len(files))
	copy(out, files)
	return out, nil
}

// RemoveSession deletes the upload and report folders of one session.
func (s *LocalStore) RemoveSession(sessionID string) error {
	if sessionID == "" || SafeName(sessionID) != sessionID {
		return fmt.Errorf("invalid session id: %q", sessionID)
	}
	for _, root := range []string{s.uploadDir, s.reportDir} {
		if err := os.RemoveAll(filepath.Join(root, sessionID)); err != nil {
			return fmt.Errorf("removing session folder: %w", err)
		}
	}

	s.mu.Lock()
	delete(s.files, sessionID)
	s.mu.Unlock()
	return nil
}

// CleanupOlderThan removes session and report folders whose id timestamp is older
// than maxAge. Folders without a parseable timestamp are left alone.
func (s *LocalStore) CleanupOlderThan(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)
	removed := 0

	for _, root := range []string{s.uploadDir, s.reportDir} {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			created, ok := SessionTime(e.Name())
			if !ok || !created.Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(root, e.Name())); err == nil && root == s.uploadDir {
				removed++
				s.mu.Lock()
				delete(s.files, e.Name())
				s.mu.Unlock()
			}
		}
	}
	return removed
}

// DetectKind classifies a saved file by extension and content. A .zip is only a
// bundle when its content really is a zip archive.
func DetectKind(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf", ".dxf", ".dwg":
		return KindDrawing
	case ".zip":
		head, err := readHead(path, 261)
		if err == nil && filetype.Is(head, "zip") {
			return KindBundle
		}
	}
	return KindOther
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}
