package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dukex/conductor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func execution(id, workflowID string, created time.Time, status models.ExecutionStatus, durationMs int64) *models.Execution {
	e := &models.Execution{
		ID:         id,
		WorkflowID: workflowID,
		Status:     status,
		Actions:    map[string]*models.ActionResult{},
		CreatedAt:  created,
	}

	if status != models.ExecutionStatusPending {
		started := created
		e.StartedAt = &started
	}

	if status.Terminal() {
		d := durationMs
		e.DurationMs = &d
	}

	return e
}

func TestRecord_EvictsOldestByCreation(t *testing.T) {
	l := New(3)

	// inserted out of creation order
	l.Record(execution("b", "wf", base.Add(2*time.Second), models.ExecutionStatusCompleted, 10))
	l.Record(execution("a", "wf", base.Add(1*time.Second), models.ExecutionStatusCompleted, 10))
	l.Record(execution("c", "wf", base.Add(3*time.Second), models.ExecutionStatusCompleted, 10))

	evicted := l.Record(execution("d", "wf", base.Add(4*time.Second), models.ExecutionStatusCompleted, 10))
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 3, l.Len())

	_, ok := l.Get("a")
	assert.False(t, ok)

	_, ok = l.Get("d")
	assert.True(t, ok)
}

func TestRecord_SizeNeverExceedsMax(t *testing.T) {
	l := New(10)

	for i := range 50 {
		l.Record(execution(fmt.Sprintf("e-%02d", i), "wf", base.Add(time.Duration(i)*time.Second), models.ExecutionStatusCompleted, 1))
		assert.LessOrEqual(t, l.Len(), 10)
	}

	history := l.History("", 100)
	require.Len(t, history, 10)
	assert.Equal(t, "e-49", history[0].ID)
	assert.Equal(t, "e-40", history[9].ID)
}

func TestRecord_UpsertAndTerminalIsFinal(t *testing.T) {
	l := New(0)

	running := execution("x", "wf", base, models.ExecutionStatusRunning, 0)
	l.Record(running)

	done := execution("x", "wf", base, models.ExecutionStatusCompleted, 25)
	l.Record(done)

	got, ok := l.Get("x")
	require.True(t, ok)
	assert.Equal(t, models.ExecutionStatusCompleted, got.Status)

	l.Record(execution("x", "wf", base, models.ExecutionStatusFailed, 99))

	got, _ = l.Get("x")
	assert.Equal(t, models.ExecutionStatusCompleted, got.Status)
	assert.Equal(t, 1, l.Len())
}

func TestRecord_CopiesInAndOut(t *testing.T) {
	l := New(0)

	e := execution("x", "wf", base, models.ExecutionStatusRunning, 0)
	l.Record(e)
	e.Status = models.ExecutionStatusFailed

	got, _ := l.Get("x")
	assert.Equal(t, models.ExecutionStatusRunning, got.Status)

	got.Status = models.ExecutionStatusCompleted

	again, _ := l.Get("x")
	assert.Equal(t, models.ExecutionStatusRunning, again.Status)
}

func TestHistory(t *testing.T) {
	l := New(0)

	l.Record(execution("old", "wf-1", base, models.ExecutionStatusCompleted, 1))
	l.Record(execution("new", "wf-1", base.Add(time.Minute), models.ExecutionStatusFailed, 1))
	l.Record(execution("other", "wf-2", base.Add(30*time.Second), models.ExecutionStatusCompleted, 1))

	all := l.History("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "other", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	wf1 := l.History("wf-1", 1)
	require.Len(t, wf1, 1)
	assert.Equal(t, "new", wf1[0].ID)

	assert.Empty(t, l.History("missing", 10))
}

func TestStats(t *testing.T) {
	l := New(0)

	empty := l.Stats(nil)
	assert.Equal(t, models.ExecutionStats{}, empty)

	l.Record(execution("c1", "wf-1", base, models.ExecutionStatusCompleted, 100))
	l.Record(execution("c2", "wf-1", base.Add(time.Second), models.ExecutionStatusCompleted, 300))
	l.Record(execution("f1", "wf-2", base.Add(2*time.Second), models.ExecutionStatusFailed, 200))
	l.Record(execution("r1", "wf-2", base.Add(3*time.Second), models.ExecutionStatusRunning, 0))

	stats := l.Stats(nil)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Running)
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)
	assert.InDelta(t, 200.0, stats.AverageDuration, 0.001)

	ranged := l.Stats(&models.TimeRange{From: base.Add(time.Second), To: base.Add(2 * time.Second)})
	assert.Equal(t, 2, ranged.Total)
	assert.Equal(t, 1, ranged.Completed)
	assert.Equal(t, 1, ranged.Failed)

	assert.InDelta(t, 100.0, l.WorkflowSuccessRate("wf-1"), 0.001)
	assert.InDelta(t, 0.0, l.WorkflowSuccessRate("wf-2"), 0.001)
	assert.Equal(t, 2, l.WorkflowStats("wf-2").Total)
}

func TestRecord_Concurrent(t *testing.T) {
	l := New(500)

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := range 50 {
				l.Record(execution(fmt.Sprintf("e-%d-%d", i, j), "wf", base.Add(time.Duration(i*50+j)*time.Millisecond), models.ExecutionStatusCompleted, 1))
				_ = l.History("wf", 10)
				_ = l.Stats(nil)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 500, l.Len())
}
