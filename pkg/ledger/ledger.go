// Package ledger keeps a bounded, in-memory history of executions.
package ledger

import (
	"slices"
	"sync"

	"github.com/dukex/conductor/pkg/models"
)

const (
	DefaultMaxSize      = 1000
	DefaultHistoryLimit = 100
)

// Ledger is a mutex-guarded bounded FIFO of executions. When full, the
// entry with the oldest creation time is evicted. Records are copied in and
// out, so callers never share memory with the ledger.
type Ledger struct {
	mu      sync.RWMutex
	maxSize int
	byID    map[string]*models.Execution
}

func New(maxSize int) *Ledger {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &Ledger{
		maxSize: maxSize,
		byID:    make(map[string]*models.Execution),
	}
}

// Record upserts an execution. A record already in a terminal state is
// never replaced. It returns the evicted execution ids, if any.
func (l *Ledger) Record(exec *models.Execution) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.byID[exec.ID]; ok {
		if !current.Status.Terminal() {
			l.byID[exec.ID] = exec.Clone()
		}

		return nil
	}

	l.byID[exec.ID] = exec.Clone()

	var evicted []string

	for len(l.byID) > l.maxSize {
		oldest := l.oldest()
		delete(l.byID, oldest)
		evicted = append(evicted, oldest)
	}

	return evicted
}

func (l *Ledger) oldest() string {
	var (
		id     string
		oldest *models.Execution
	)

	for k, e := range l.byID {
		if oldest == nil || e.CreatedAt.Before(oldest.CreatedAt) ||
			(e.CreatedAt.Equal(oldest.CreatedAt) && k < id) {
			id, oldest = k, e
		}
	}

	return id
}

// Get returns a copy of one execution.
func (l *Ledger) Get(id string) (*models.Execution, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.byID[id]
	if !ok {
		return nil, false
	}

	return e.Clone(), true
}

// History returns executions newest first by start time, optionally for one
// workflow, capped at limit (DefaultHistoryLimit when limit <= 0).
func (l *Ledger) History(workflowID string, limit int) []*models.Execution {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	l.mu.RLock()
	matches := make([]*models.Execution, 0, len(l.byID))

	for _, e := range l.byID {
		if workflowID == "" || e.WorkflowID == workflowID {
			matches = append(matches, e.Clone())
		}
	}
	l.mu.RUnlock()

	slices.SortFunc(matches, func(a, b *models.Execution) int {
		if c := b.SortTime().Compare(a.SortTime()); c != 0 {
			return c
		}

		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}

// Stats aggregates executions created inside r; a nil range covers everything.
// The success rate is completed/total*100 and 0 for an empty set. The
// average duration only counts entries with a recorded duration.
func (l *Ledger) Stats(r *models.TimeRange) models.ExecutionStats {
	return l.aggregate(func(e *models.Execution) bool { return r.Contains(e.CreatedAt) })
}

// WorkflowStats aggregates the executions of one workflow.
func (l *Ledger) WorkflowStats(workflowID string) models.ExecutionStats {
	return l.aggregate(func(e *models.Execution) bool { return e.WorkflowID == workflowID })
}

// WorkflowSuccessRate is the success rate of one workflow's finished executions.
func (l *Ledger) WorkflowSuccessRate(workflowID string) float64 {
	stats := l.WorkflowStats(workflowID)

	finished := stats.Completed + stats.Failed
	if finished == 0 {
		return 0
	}

	return float64(stats.Completed) / float64(finished) * 100
}

func (l *Ledger) aggregate(include func(*models.Execution) bool) models.ExecutionStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		stats    models.ExecutionStats
		timed    int
		totalDur int64
	)

	for _, e := range l.byID {
		if !include(e) {
			continue
		}

		stats.Total++

		switch e.Status {
		case models.ExecutionStatusCompleted:
			stats.Completed++
		case models.ExecutionStatusFailed:
			stats.Failed++
		case models.ExecutionStatusRunning:
			stats.Running++
		case models.ExecutionStatusPending:
			stats.Pending++
		}

		if e.DurationMs != nil {
			timed++
			totalDur += *e.DurationMs
		}
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total) * 100
	}

	if timed > 0 {
		stats.AverageDuration = float64(totalDur) / float64(timed)
	}

	return stats
}

// Len is the number of retained executions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.byID)
}
