package ingest

import (
	"sync"
	"time"

	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

// tally accumulates per-image outcomes across workers.
type tally struct {
	mu             sync.Mutex
	skippedCount   int
	persistCount   int
	failCount      int
	cancelledCount int
	detectionSum   int
	failureReason  map[string]int
}

func newTally() *tally {
	return &tally{failureReason: make(map[string]int)}
}

func (t *tally) skipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skippedCount++
}

func (t *tally) persisted(detections int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.persistCount++
	t.detectionSum += detections
}

func (t *tally) failed(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failCount++
	t.failureReason[reason]++
}

func (t *tally) cancelled(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelledCount += n
}

func (t *tally) summary(runID string, started time.Time, discovered int) *pipeline.RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	failures := make(map[string]int, len(t.failureReason))
	for reason, n := range t.failureReason {
		failures[reason] = n
	}
	return &pipeline.RunSummary{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Discovered: discovered,
		Skipped:    t.skippedCount,
		Persisted:  t.persistCount,
		Failed:     t.failCount,
		Cancelled:  t.cancelledCount,
		Failures:   failures,
		Detections: t.detectionSum,
	}
}
