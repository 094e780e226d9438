package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/drawing-checker/backend/internal/drawing"
	"github.com/drawing-checker/backend/internal/metrics"
	"github.com/drawing-checker/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc is called after each item with the number of finished items.
type ProgressFunc func(done, total int)

// Aggregator runs the pipeline over a selection and collects the session result.
type Aggregator struct {
	Pipeline      *Pipeline
	MaxConcurrent int
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Progress      ProgressFunc
}

// Run reviews every item of sel. Per-item failures are recorded in the result and
// never stop the run. Once ctx is done no further item is started and the
// remaining items are recorded as cancelled. Reports keep the order of sel.Items.
func (a *Aggregator) Run(ctx context.Context, sessionID string, sel drawing.Selection) *models.SessionResult {
	log := a.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "review", "session", shortID(sessionID))

	total := len(sel.Items)
	results := make([]models.FileResult, total)

	limit := a.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}

	var mu sync.Mutex
	done := 0
	finish := func() {
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		if a.Progress != nil {
			a.Progress(n, total)
		}
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range sel.Items {
		if ctx.Err() != nil {
			results[i] = cancelled(item)
			finish()
			continue
		}
		g.Go(func() error {
			results[i] = a.reviewOne(ctx, log, item)
			finish()
			return nil
		})
	}
	g.Wait()

	result := &models.SessionResult{
		SessionID:    sessionID,
		DrawingIndex: sel.Index,
		Reports:      results,
		Summary:      make([]models.SummaryRow, 0, total),
	}
	for _, r := range results {
		if r.Outcome != nil {
			result.Summary = append(result.Summary, models.SummaryRow{
				Drawing: r.Drawing,
				Score:   r.Outcome.Score,
				Risk:    r.Outcome.Risk,
			})
		}
	}

	log.Info("session reviewed", "drawings", total, "scored", len(result.Summary), "failed", result.Failed())
	return result
}

func (a *Aggregator) reviewOne(ctx context.Context, log *slog.Logger, item models.WorkItem) (res models.FileResult) {
	start := time.Now()
	res = models.FileResult{Identity: item.Identity, Drawing: item.Name}

	defer func() {
		if r := recover(); r != nil {
			log.Error("review panicked", "drawing", item.Name, "panic", r)
			res.Outcome = nil
			res.Error = &models.FileError{Kind: models.ErrInternal, Message: fmt.Sprintf("panic: %v", r)}
		}
		a.observe(res, time.Since(start))
	}()

	if ctx.Err() != nil {
		return cancelled(item)
	}

	outcome, err := a.Pipeline.Review(ctx, item)
	res.Outcome = outcome
	if err != nil {
		kind := models.KindOf(err)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			kind = models.ErrCancelled
		}
		res.Error = &models.FileError{Kind: kind, Message: err.Error()}
		log.Warn("review failed", "drawing", item.Name, "kind", kind, "error", err)
		return res
	}

	log.Info("drawing reviewed", "drawing", item.Name, "score", outcome.Score, "risk", outcome.Risk)
	return res
}

func (a *Aggregator) observe(res models.FileResult, elapsed time.Duration) {
	outcome := "ok"
	if res.Error != nil {
		outcome = string(res.Error.Kind)
	}
	var score float64
	if res.Outcome != nil {
		score = res.Outcome.Score
	}
	a.Metrics.ObserveReview(outcome, score, res.Outcome != nil, elapsed)
}

func cancelled(item models.WorkItem) models.FileResult {
	return models.FileResult{
		Identity: item.Identity,
		Drawing:  item.Name,
		Error:    &models.FileError{Kind: models.ErrCancelled, Message: "session cancelled before review"},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}
