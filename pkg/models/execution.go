package models

import (
	"maps"
	"time"
)

// ExecutionStatus is the overall state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// ActionStatus is the state of one action inside an execution.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusRunning   ActionStatus = "running"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
	ActionStatusSkipped   ActionStatus = "skipped"
)

// ActionResult records the outcome of one action.
type ActionResult struct {
	ActionID   string         `json:"action_id"`
	Type       ActionType     `json:"type"`
	Status     ActionStatus   `json:"status"`
	Attempts   int            `json:"attempts"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Execution is one run record produced by firing a workflow.
type Execution struct {
	ID           string                   `json:"id"`
	WorkflowID   string                   `json:"workflow_id"`
	WorkflowName string                   `json:"workflow_name"`
	Status       ExecutionStatus          `json:"status"`
	Trigger      TriggerType              `json:"trigger"`
	Input        map[string]any           `json:"input,omitempty"`
	Actions      map[string]*ActionResult `json:"actions"`
	ActionOrder  []string                 `json:"action_order"`
	Error        string                   `json:"error,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	StartedAt    *time.Time               `json:"started_at,omitempty"`
	FinishedAt   *time.Time               `json:"finished_at,omitempty"`
	DurationMs   *int64                   `json:"duration_ms,omitempty"`
}

// NewExecution builds a pending execution with one pending sub-status per action.
func NewExecution(id string, workflow *Workflow, trigger TriggerType, input map[string]any) *Execution {
	exec := &Execution{
		ID:           id,
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		Status:       ExecutionStatusPending,
		Trigger:      trigger,
		Input:        maps.Clone(input),
		Actions:      make(map[string]*ActionResult, len(workflow.Actions)),
		ActionOrder:  make([]string, 0, len(workflow.Actions)),
		CreatedAt:    time.Now().UTC(),
	}

	for _, action := range workflow.Actions {
		exec.Actions[action.ID] = &ActionResult{
			ActionID: action.ID,
			Type:     action.Type,
			Status:   ActionStatusPending,
		}
		exec.ActionOrder = append(exec.ActionOrder, action.ID)
	}

	return exec
}

// MarkRunning sets the running status and start time.
func (e *Execution) MarkRunning(now time.Time) {
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now
}

// Finish closes the execution with a terminal status and a recorded duration.
func (e *Execution) Finish(status ExecutionStatus, now time.Time, errMsg string) {
	e.Status = status
	e.Error = errMsg
	e.FinishedAt = &now

	start := e.CreatedAt
	if e.StartedAt != nil {
		start = *e.StartedAt
	}

	d := now.Sub(start).Milliseconds()
	e.DurationMs = &d
}

// SortTime is the time used to order history: start time, or creation time while pending.
func (e *Execution) SortTime() time.Time {
	if e.StartedAt != nil {
		return *e.StartedAt
	}

	return e.CreatedAt
}

// Clone copies the execution including every action result.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}

	c := *e
	c.Input = maps.Clone(e.Input)
	c.ActionOrder = append([]string(nil), e.ActionOrder...)

	c.Actions = make(map[string]*ActionResult, len(e.Actions))
	for id, r := range e.Actions {
		rc := *r
		rc.Output = maps.Clone(r.Output)
		c.Actions[id] = &rc
	}

	return &c
}

// TimeRange bounds a stats query; zero values are open ends.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range.
func (r *TimeRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}

	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}

	if !r.To.IsZero() && t.After(r.To) {
		return false
	}

	return true
}

// ExecutionStats aggregates ledger entries.
type ExecutionStats struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Running         int     `json:"running"`
	Pending         int     `json:"pending"`
	SuccessRate     float64 `json:"success_rate"`
	AverageDuration float64 `json:"average_duration_ms"`
}
