package engine

import (
	"context"
	"errors"

	"github.com/dukex/conductor/pkg/events"
	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/otelhelper"
	"github.com/dukex/conductor/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

type job struct {
	ctx       context.Context
	workflow  *models.Workflow
	execution *models.Execution
}

// RunWorkflow executes the workflow synchronously with a manual trigger,
// whatever its status. Action failures are recorded on the returned
// execution, not returned as errors.
func (e *Engine) RunWorkflow(ctx context.Context, id string, input map[string]any) (*models.Execution, error) {
	wf, err := e.snapshot("RunWorkflow", id)
	if err != nil {
		return nil, err
	}

	exec := models.NewExecution(e.newID(), wf, models.TriggerTypeManual, input)
	exec.CreatedAt = e.now()

	e.ledger.Record(exec)
	e.execute(ctx, wf, exec)

	return exec.Clone(), nil
}

// Enqueue records a pending execution and hands it to the worker pool. The
// run outlives ctx cancellation.
func (e *Engine) Enqueue(ctx context.Context, id string, input map[string]any) (*models.Execution, error) {
	return e.enqueue(ctx, id, models.TriggerTypeManual, input)
}

func (e *Engine) enqueue(ctx context.Context, id string, triggerType models.TriggerType, input map[string]any) (*models.Execution, error) {
	wf, err := e.snapshot("Enqueue", id)
	if err != nil {
		return nil, err
	}

	e.poolMu.RLock()
	defer e.poolMu.RUnlock()

	if e.pool == nil {
		return nil, ErrNotRunning
	}

	exec := models.NewExecution(e.newID(), wf, triggerType, input)
	exec.CreatedAt = e.now()

	e.ledger.Record(exec)
	pending := exec.Clone()

	e.inflight.Add(1)

	err = e.pool.Invoke(&job{ctx: context.WithoutCancel(ctx), workflow: wf, execution: exec})
	if err != nil {
		e.inflight.Done()

		exec.Finish(models.ExecutionStatusFailed, e.now(), err.Error())
		e.ledger.Record(exec)

		return nil, err
	}

	return pending, nil
}

// HandleEvent evaluates input against every live workflow and runs the
// matches one after another. Failures stay inside their executions; the
// error is only for a malformed input.
func (e *Engine) HandleEvent(ctx context.Context, input models.Input) ([]*models.Execution, error) {
	err := e.validateInput(input)
	if err != nil {
		return nil, err
	}

	if input.ID == "" {
		input.ID = e.newID()
	}

	if input.Timestamp.IsZero() {
		input.Timestamp = e.now()
	}

	logger := e.logger.With("event_id", input.ID, "event_type", input.Type)

	candidates := e.liveSnapshot()
	executions := make([]*models.Execution, 0)

	for _, wf := range candidates {
		if !e.evaluator.Match(wf, input) {
			continue
		}

		logger.DebugContext(ctx, "Trigger matched", "workflow_id", wf.ID)

		exec := models.NewExecution(e.newID(), wf, wf.Trigger.Type, input.Payload())
		exec.CreatedAt = e.now()

		e.ledger.Record(exec)
		e.execute(ctx, wf, exec)

		executions = append(executions, exec.Clone())
	}

	logger.InfoContext(ctx, "Event handled", "live_workflows", len(candidates), "executions", len(executions))

	return executions, nil
}

// execute runs exec to completion and records it everywhere. Action spans
// are children of the execution span.
func (e *Engine) execute(ctx context.Context, wf *models.Workflow, exec *models.Execution) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution "+wf.Name,
		attribute.String(otelhelper.ExecutionIDKey, exec.ID),
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.WorkflowNameKey, wf.Name),
		attribute.String(otelhelper.TriggerTypeKey, string(exec.Trigger)),
	)
	defer span.End()

	e.publish(ctx, events.NewExecutionEvent(exec))

	err := e.executor.Run(ctx, wf, exec)
	if err != nil {
		otelhelper.SetError(span, err)

		e.logger.WarnContext(ctx, "Workflow execution failed",
			"workflow_id", wf.ID,
			"execution_id", exec.ID,
			"error", err,
		)
	}

	e.ledger.Record(exec)

	final := exec.Clone()

	e.persist(ctx, persistence.ExecutionsCollection, final.ID, final)

	if updated := e.recordRun(wf.ID, exec); updated != nil {
		e.persist(ctx, persistence.WorkflowsCollection, updated.ID, updated)
	}

	e.publish(ctx, events.NewExecutionEvent(final))
}

// recordRun refreshes the run counters of a workflow that still exists and
// returns its new state.
func (e *Engine) recordRun(id string, exec *models.Execution) *models.Workflow {
	rate := e.ledger.WorkflowSuccessRate(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	wf, ok := e.workflows[id]
	if !ok {
		return nil
	}

	wf.RunCount++
	wf.SuccessRate = rate

	started := exec.SortTime()
	wf.LastRunAt = &started

	return wf.Clone()
}

func (e *Engine) snapshot(op, id string) (*models.Workflow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	wf, ok := e.workflows[id]
	if !ok {
		return nil, notFound(op, id)
	}

	return wf.Clone(), nil
}

func (e *Engine) liveSnapshot() []*models.Workflow {
	e.mu.RLock()
	result := make([]*models.Workflow, 0, len(e.live))

	for id := range e.live {
		if wf, ok := e.workflows[id]; ok {
			result = append(result, wf.Clone())
		}
	}
	e.mu.RUnlock()

	sortWorkflows(result)

	return result
}

// History lists executions newest first, optionally for one workflow.
func (e *Engine) History(_ context.Context, workflowID string, limit int) []*models.Execution {
	return e.ledger.History(workflowID, limit)
}

// Execution looks an execution up in the ledger, then in the audit store
// for entries the ledger has evicted.
func (e *Engine) Execution(ctx context.Context, id string) (*models.Execution, error) {
	if exec, ok := e.ledger.Get(id); ok {
		return exec, nil
	}

	if e.store != nil {
		doc, err := e.store.Get(ctx, persistence.ExecutionsCollection, id)
		if err == nil {
			var exec models.Execution
			if err := doc.Decode(&exec); err != nil {
				return nil, err
			}

			return &exec, nil
		}

		if !errors.Is(err, persistence.ErrDocumentNotFound) {
			return nil, err
		}
	}

	return nil, ErrExecutionNotFound
}

// Stats aggregates ledger executions created inside r; nil means all.
func (e *Engine) Stats(_ context.Context, r *models.TimeRange) models.ExecutionStats {
	return e.ledger.Stats(r)
}

func (e *Engine) WorkflowStats(_ context.Context, id string) (models.ExecutionStats, error) {
	if _, err := e.snapshot("WorkflowStats", id); err != nil {
		return models.ExecutionStats{}, err
	}

	return e.ledger.WorkflowStats(id), nil
}
