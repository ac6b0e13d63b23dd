// Package executor runs the ordered actions of one workflow execution.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/otelhelper"
	"github.com/dukex/conductor/pkg/protocol"
	"github.com/dukex/conductor/pkg/registry"
	"github.com/jpillora/backoff"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Executor dispatches actions through the registry, strictly one after
// another. A failed action stops the run and marks later actions skipped.
type Executor struct {
	registry *registry.Registry
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Executor)

// WithTracer records one span per action.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

func New(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		tracer:   otelhelper.NoopTracer(),
		logger:   logger.With("module", "executor"),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes the workflow's actions against exec, which it mutates in
// place. It returns an *ActionExecutionError when an action exhausts its
// attempts; exec is then Failed. The workflow is expected to be a snapshot
// the caller will not modify concurrently.
func (e *Executor) Run(ctx context.Context, workflow *models.Workflow, exec *models.Execution) error {
	logger := e.logger.With("execution_id", exec.ID, "workflow_id", workflow.ID)

	exec.MarkRunning(e.now())

	executionCtx := models.ExecutionContext{
		ExecutionID: exec.ID,
		WorkflowID:  workflow.ID,
		Input:       exec.Input,
		Steps:       make(map[string]any, len(workflow.Actions)),
		Variables:   maps.Clone(workflow.Variables),
	}

	for i, action := range workflow.Actions {
		result := exec.Actions[action.ID]
		if result == nil {
			result = &models.ActionResult{ActionID: action.ID, Type: action.Type}
			exec.Actions[action.ID] = result
			exec.ActionOrder = append(exec.ActionOrder, action.ID)
		}

		output, err := e.runAction(ctx, logger, action, result, executionCtx)
		if err != nil {
			for _, rest := range workflow.Actions[i+1:] {
				if r := exec.Actions[rest.ID]; r != nil {
					r.Status = models.ActionStatusSkipped
				}
			}

			actionErr := &ActionExecutionError{
				ExecutionID: exec.ID,
				ActionID:    action.ID,
				ActionType:  action.Type,
				Attempts:    result.Attempts,
				Err:         err,
			}

			exec.Finish(models.ExecutionStatusFailed, e.now(), actionErr.Error())

			logger.WarnContext(ctx, "Execution failed", "action_id", action.ID, "error", err)

			return actionErr
		}

		executionCtx.Steps[action.ID] = output
	}

	exec.Finish(models.ExecutionStatusCompleted, e.now(), "")

	logger.InfoContext(ctx, "Execution completed", "duration_ms", *exec.DurationMs)

	return nil
}

func (e *Executor) runAction(
	ctx context.Context,
	logger *slog.Logger,
	action models.Action,
	result *models.ActionResult,
	executionCtx models.ExecutionContext,
) (map[string]any, error) {
	logger = logger.With("action_id", action.ID, "action_type", action.Type)

	started := e.now()
	result.Status = models.ActionStatusRunning
	result.StartedAt = &started

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "action "+string(action.Type),
		attribute.String(otelhelper.ExecutionIDKey, executionCtx.ExecutionID),
		attribute.String(otelhelper.WorkflowIDKey, executionCtx.WorkflowID),
		attribute.String(otelhelper.ActionIDKey, action.ID),
		attribute.String(otelhelper.ActionTypeKey, string(action.Type)),
	)
	defer span.End()

	output, err := e.attempt(ctx, logger, action, result, executionCtx)

	finished := e.now()
	result.FinishedAt = &finished
	result.Output = output

	if err != nil {
		result.Status = models.ActionStatusFailed
		result.Error = err.Error()

		otelhelper.SetError(span, err, attribute.Int(otelhelper.AttemptKey, result.Attempts))

		return nil, err
	}

	result.Status = models.ActionStatusCompleted
	result.Error = ""

	return output, nil
}

// attempt retries the action up to its MaxAttempts, pausing between tries
// per the action's retry policy.
func (e *Executor) attempt(
	ctx context.Context,
	logger *slog.Logger,
	action models.Action,
	result *models.ActionResult,
	executionCtx models.ExecutionContext,
) (map[string]any, error) {
	handler, err := e.registry.CreateAction(ctx, action.Type, action.Parameters)
	if err != nil {
		result.Attempts = 1

		return nil, fmt.Errorf("create action: %w", err)
	}

	attempts := action.Attempts()
	delay := action.RetryDelay()
	b := retryBackoff(action)

	var (
		output  map[string]any
		lastErr error
	)

	for n := 1; n <= attempts; n++ {
		result.Attempts = n

		output, lastErr = e.executeOnce(ctx, logger, handler, action, executionCtx)
		if lastErr == nil {
			return output, nil
		}

		if n == attempts {
			break
		}

		logger.WarnContext(ctx, "Action attempt failed, retrying",
			"attempt", n, "max_attempts", attempts, "error", lastErr)

		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(b.Duration())

		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return output, lastErr
}

// retryBackoff grows the delay by the policy multiplier, capped at MaxDelay
// when one is set.
func retryBackoff(action models.Action) *backoff.Backoff {
	delay := action.RetryDelay()
	b := &backoff.Backoff{Min: delay, Max: delay, Factor: 1}

	p := action.Retry
	if p == nil || p.Multiplier <= 1 {
		return b
	}

	b.Factor = p.Multiplier
	b.Jitter = p.Jitter
	b.Max = time.Duration(math.MaxInt64)

	if maxDelay := p.MaxDelay.Duration(); maxDelay >= delay {
		b.Max = maxDelay
	}

	return b
}

type outcome struct {
	output map[string]any
	err    error
}

// executeOnce runs one attempt under the action timeout. A handler that
// ignores its context is abandoned when the deadline passes, so each attempt
// reads its own copy of the execution context maps.
func (e *Executor) executeOnce(
	ctx context.Context,
	logger *slog.Logger,
	handler protocol.Action,
	action models.Action,
	executionCtx models.ExecutionContext,
) (map[string]any, error) {
	timeout := action.EffectiveTimeout()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	executionCtx.Input = maps.Clone(executionCtx.Input)
	executionCtx.Steps = maps.Clone(executionCtx.Steps)
	executionCtx.Variables = maps.Clone(executionCtx.Variables)

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("action panicked: %v", r)}
			}
		}()

		output, err := handler.Execute(attemptCtx, executionCtx, logger)
		done <- outcome{output: output, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return res.output, fmt.Errorf("timed out after %s: %w", timeout, res.err)
		}

		return res.output, res.err
	case <-attemptCtx.Done():
		if ctx.Err() == nil {
			return nil, fmt.Errorf("timed out after %s: %w", timeout, attemptCtx.Err())
		}

		return nil, attemptCtx.Err()
	}
}
