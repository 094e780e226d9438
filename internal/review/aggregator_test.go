package review

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drawing-checker/backend/internal/drawing"
	"github.com/drawing-checker/backend/internal/metrics"
	"github.com/drawing-checker/backend/internal/models"
	"github.com/drawing-checker/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionFiles(t *testing.T, f *fixture, names map[string][]byte) drawing.Selection {
	t.Helper()
	for name, data := range names {
		testutil.WriteFile(t, f.dir, name, data)
	}
	files, err := drawing.ListSessionFiles(f.dir)
	require.NoError(t, err)
	return drawing.Select(files)
}

func TestAggregator_Run(t *testing.T) {
	f := newFixture(t, assessment(28, 0, 2))
	f.assessor.Responses["DR-EL-200"] = assessment(15, 0, 15)

	sel := sessionFiles(t, f, map[string][]byte{
		"DR-CV-100-C2.pdf":  testutil.MinimalPDF("old revision"),
		"DR-CV-100-P10.pdf": testutil.MinimalPDF("latest revision"),
		"DR-EL-200-C1.dxf":  testutil.DXF("CABLE TRAY"),
		"broken.pdf":        []byte("not a pdf"),
		"notes.txt":         []byte("ignored"),
	})

	var progress []int
	agg := &Aggregator{
		Pipeline: f.pipeline,
		Metrics:  metrics.New(),
		Progress: func(done, total int) {
			assert.Equal(t, 3, total)
			progress = append(progress, done)
		},
	}

	result := agg.Run(context.Background(), "20260101120000_abcd1234", sel)
	require.NotNil(t, result)
	assert.Equal(t, "20260101120000_abcd1234", result.SessionID)
	assert.Equal(t, []string{"DR-CV-100-C2.pdf", "DR-CV-100-P10.pdf"}, result.DrawingIndex["DR-CV-100"])
	assert.Equal(t, []int{1, 2, 3}, progress)

	require.Len(t, result.Reports, 3)
	assert.Equal(t, "DR-CV-100-P10.pdf", result.Reports[0].Drawing)
	assert.True(t, result.Reports[0].OK())
	assert.Equal(t, "DR-EL-200-C1.dxf", result.Reports[1].Drawing)
	assert.Equal(t, models.RiskHigh, result.Reports[1].Outcome.Risk)
	assert.Equal(t, "broken.pdf", result.Reports[2].Drawing)
	require.NotNil(t, result.Reports[2].Error)
	assert.Equal(t, models.ErrExtraction, result.Reports[2].Error.Kind)
	assert.Nil(t, result.Reports[2].Outcome)

	assert.Equal(t, []models.SummaryRow{
		{Drawing: "DR-CV-100-P10.pdf", Score: 28, Risk: models.RiskLow},
		{Drawing: "DR-EL-200-C1.dxf", Score: 15, Risk: models.RiskHigh},
	}, result.Summary)
	assert.Equal(t, 1, result.Failed())
}

func TestAggregator_ReportWriteFailureStillSummarised(t *testing.T) {
	f := newFixture(t, assessment(21, 0, 9))
	f.writer.Fail["DR-CV-100-C1.pdf"] = true
	sel := sessionFiles(t, f, map[string][]byte{
		"DR-CV-100-C1.pdf": testutil.MinimalPDF("x"),
	})

	result := (&Aggregator{Pipeline: f.pipeline}).Run(context.Background(), "s", sel)
	require.Len(t, result.Reports, 1)
	r := result.Reports[0]
	require.NotNil(t, r.Error)
	assert.Equal(t, models.ErrReportWrite, r.Error.Kind)
	require.NotNil(t, r.Outcome)
	assert.Equal(t, 21.0, r.Outcome.Score)
	assert.Equal(t, []models.SummaryRow{{Drawing: "DR-CV-100-C1.pdf", Score: 21, Risk: models.RiskMedium}}, result.Summary)
}

func TestAggregator_EmptySelection(t *testing.T) {
	f := newFixture(t, "")
	result := (&Aggregator{Pipeline: f.pipeline}).Run(context.Background(), "s", drawing.Select(nil))
	assert.Empty(t, result.Reports)
	assert.Empty(t, result.Summary)
	assert.NotNil(t, result.Summary)
}

type panicAssessor struct{}

func (panicAssessor) Assess(ctx context.Context, prompt string) (string, error) {
	panic("boom")
}

func TestAggregator_PanicIsolated(t *testing.T) {
	f := newFixture(t, "")
	f.pipeline.Assessor = panicAssessor{}
	sel := sessionFiles(t, f, map[string][]byte{
		"DR-CV-100-C1.pdf": testutil.MinimalPDF("x"),
		"DR-CV-200-C1.pdf": testutil.MinimalPDF("y"),
	})

	result := (&Aggregator{Pipeline: f.pipeline}).Run(context.Background(), "s", sel)
	require.Len(t, result.Reports, 2)
	for _, r := range result.Reports {
		require.NotNil(t, r.Error)
		assert.Equal(t, models.ErrInternal, r.Error.Kind)
		assert.Contains(t, r.Error.Message, "boom")
	}
	assert.Empty(t, result.Summary)
}

// cancellingAssessor cancels the session after the first call.
type cancellingAssessor struct {
	cancel context.CancelFunc
	calls  atomic.Int32
}

func (c *cancellingAssessor) Assess(ctx context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	c.cancel()
	return assessment(30, 0, 0), nil
}

func TestAggregator_CancelledSession(t *testing.T) {
	f := newFixture(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ca := &cancellingAssessor{cancel: cancel}
	f.pipeline.Assessor = ca

	sel := sessionFiles(t, f, map[string][]byte{
		"DR-CV-100-C1.pdf": testutil.MinimalPDF("a"),
		"DR-CV-200-C1.pdf": testutil.MinimalPDF("b"),
		"DR-CV-300-C1.pdf": testutil.MinimalPDF("c"),
	})

	result := (&Aggregator{Pipeline: f.pipeline}).Run(ctx, "s", sel)
	require.Len(t, result.Reports, 3)
	assert.Equal(t, int32(1), ca.calls.Load())
	assert.NotNil(t, result.Reports[0].Outcome)
	for _, r := range result.Reports[1:] {
		require.NotNil(t, r.Error)
		assert.Equal(t, models.ErrCancelled, r.Error.Kind)
	}
}

// slowAssessor tracks how many calls run at the same time.
type slowAssessor struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (s *slowAssessor) Assess(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.current++
	if s.current > s.peak {
		s.peak = s.current
	}
	s.mu.Unlock()

	time.Sleep(30 * time.Millisecond)

	s.mu.Lock()
	s.current--
	s.mu.Unlock()
	return assessment(30, 0, 0), nil
}

func TestAggregator_Concurrency(t *testing.T) {
	f := newFixture(t, "")
	slow := &slowAssessor{}
	f.pipeline.Assessor = slow

	files := map[string][]byte{}
	for _, name := range []string{"DR-A-1-C1.pdf", "DR-A-2-C1.pdf", "DR-A-3-C1.pdf", "DR-A-4-C1.pdf", "DR-A-5-C1.pdf"} {
		files[name] = testutil.MinimalPDF(name)
	}
	sel := sessionFiles(t, f, files)

	result := (&Aggregator{Pipeline: f.pipeline, MaxConcurrent: 2}).Run(context.Background(), "s", sel)
	require.Len(t, result.Reports, 5)
	for i, r := range result.Reports {
		assert.Equal(t, sel.Items[i].Name, r.Drawing)
		assert.True(t, r.OK())
	}
	assert.LessOrEqual(t, slow.peak, 2)
	assert.Len(t, result.Summary, 5)
}

func TestAggregator_AssessmentFailureNotSummarised(t *testing.T) {
	f := newFixture(t, assessment(30, 0, 0))
	f.assessor.Failures["second"] = errors.New("rate limited")
	sel := sessionFiles(t, f, map[string][]byte{
		"DR-CV-100-C1.pdf": testutil.MinimalPDF("first"),
		"DR-CV-200-C1.pdf": testutil.MinimalPDF("second"),
	})

	result := (&Aggregator{Pipeline: f.pipeline}).Run(context.Background(), "s", sel)
	assert.Equal(t, models.ErrAssessment, result.Reports[1].Error.Kind)
	assert.Len(t, result.Summary, 1)
	assert.Equal(t, "DR-CV-100-C1.pdf", result.Summary[0].Drawing)
}
