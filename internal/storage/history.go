package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/drawing-checker/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// HistoryEntry is one reviewed drawing recorded in the history database.
type HistoryEntry struct {
	SessionID  string          `json:"sessionId"`
	Drawing    string          `json:"drawing"`
	Identity   string          `json:"identity"`
	Score      float64         `json:"score"`
	Total      int             `json:"total"`
	Risk       models.RiskTier `json:"risk"`
	ReviewedAt time.Time       `json:"reviewedAt"`
}

// History stores the summary rows of finished sessions in a DuckDB file so recent
// results survive restarts.
type History struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// OpenHistory opens or creates the history database at dbPath.
func OpenHistory(dbPath string) (*History, error) {
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reviews (
			session_id  VARCHAR NOT NULL,
			drawing     VARCHAR NOT NULL,
			identity    VARCHAR NOT NULL,
			score       DOUBLE NOT NULL,
			total       INTEGER NOT NULL,
			risk        VARCHAR NOT NULL,
			reviewed_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &History{db: db, dbPath: dbPath}, nil
}

// Record inserts every scored file of a session result.
func (h *History) Record(ctx context.Context, result *models.SessionResult, reviewedAt time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reviews VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range result.Reports {
		if r.Outcome == nil {
			continue
		}
		_, err := stmt.ExecContext(ctx, result.SessionID, r.Drawing, r.Identity,
			r.Outcome.Score, r.Outcome.Total, string(r.Outcome.Risk), reviewedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert history row for %s: %w", r.Drawing, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first. An empty identity returns all drawings.
func (h *History) Recent(ctx context.Context, identity string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT session_id, drawing, identity, score, total, risk, reviewed_at FROM reviews`
	args := []any{}
	if identity != "" {
		query += ` WHERE identity = ?`
		args = append(args, identity)
	}
	query += ` ORDER BY reviewed_at DESC, drawing ASC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var e HistoryEntry
		var risk string
		if err := rows.Scan(&e.SessionID, &e.Drawing, &e.Identity, &e.Score, &e.Total, &risk, &e.ReviewedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Risk = models.RiskTier(risk)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}
