// Package models defines the core domain models for module orchestration and workflow automation.
package models

import (
	"slices"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft  WorkflowStatus = "draft"  // Editable, never fires
	WorkflowStatusActive WorkflowStatus = "active" // Member of the live trigger set
	WorkflowStatusPaused WorkflowStatus = "paused" // Temporarily removed from the live trigger set
)

// Valid reports whether the status is one of the known workflow statuses.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusPaused:
		return true
	default:
		return false
	}
}

// Workflow is a persisted trigger plus an ordered list of actions.
type Workflow struct {
	ID          string         `json:"id"                    yaml:"id"`
	Name        string         `json:"name"                  yaml:"name"        validate:"required,min=3"`
	Description string         `json:"description"           yaml:"description"`
	Trigger     Trigger        `json:"trigger"               yaml:"trigger"`
	Actions     []Action       `json:"actions"               yaml:"actions"     validate:"required,min=1,dive"`
	Status      WorkflowStatus `json:"status"                yaml:"status"`
	Enabled     bool           `json:"enabled"               yaml:"enabled"`
	Tags        []string       `json:"tags,omitempty"        yaml:"tags"`
	Variables   map[string]any `json:"variables,omitempty"   yaml:"variables"`
	Schedule    *Schedule      `json:"schedule,omitempty"    yaml:"-"`
	SuccessRate float64        `json:"success_rate"          yaml:"-"`
	RunCount    int64          `json:"run_count"             yaml:"-"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty" yaml:"-"`
	CreatedAt   time.Time      `json:"created_at"            yaml:"-"`
	UpdatedAt   time.Time      `json:"updated_at"            yaml:"-"`
}

// IsLive reports whether the workflow belongs in the live trigger set.
func (w *Workflow) IsLive() bool {
	return w.Status == WorkflowStatusActive && w.Enabled
}

// HasAnyTag reports whether the workflow carries at least one of the given tags.
func (w *Workflow) HasAnyTag(tags []string) bool {
	for _, tag := range tags {
		if slices.Contains(w.Tags, tag) {
			return true
		}
	}

	return false
}

// Clone returns a deep enough copy for callers to mutate without touching the original.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	c := *w
	c.Trigger = w.Trigger.Clone()
	c.Tags = slices.Clone(w.Tags)
	c.Variables = cloneMap(w.Variables)

	c.Actions = make([]Action, len(w.Actions))
	for i, a := range w.Actions {
		c.Actions[i] = a.Clone()
	}

	if w.Schedule != nil {
		s := *w.Schedule
		c.Schedule = &s
	}

	if w.LastRunAt != nil {
		t := *w.LastRunAt
		c.LastRunAt = &t
	}

	return &c
}

// WorkflowFilter selects workflows in ListWorkflows. Every set dimension must
// match; Tags matches when the workflow has any of the listed tags.
type WorkflowFilter struct {
	Enabled     *bool          `json:"enabled,omitempty"`
	Status      WorkflowStatus `json:"status,omitempty"`
	TriggerType TriggerType    `json:"trigger_type,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

// Matches applies the filter to a single workflow.
func (f WorkflowFilter) Matches(w *Workflow) bool {
	if f.Enabled != nil && w.Enabled != *f.Enabled {
		return false
	}

	if f.Status != "" && w.Status != f.Status {
		return false
	}

	if f.TriggerType != "" && w.Trigger.Type != f.TriggerType {
		return false
	}

	if len(f.Tags) > 0 && !w.HasAnyTag(f.Tags) {
		return false
	}

	return true
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}

	return c
}
