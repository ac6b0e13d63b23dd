package web

import (
	"time"

	"github.com/dukex/conductor/pkg/engine"
	"github.com/dukex/conductor/pkg/models"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Response is the success envelope.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// ErrorResponse is the failure envelope; Error holds an RFC 7807 problem.
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   any    `json:"error"`
	Details string `json:"details"`
}

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	ID          string                `json:"id,omitempty"`
	Name        string                `json:"name"                  validate:"required,min=3"`
	Description string                `json:"description"`
	Trigger     models.Trigger        `json:"trigger"`
	Actions     []models.Action       `json:"actions"               validate:"required,min=1,dive"`
	Status      models.WorkflowStatus `json:"status,omitempty"      validate:"omitempty,oneof=draft active paused"`
	Enabled     bool                  `json:"enabled"`
	Tags        []string              `json:"tags,omitempty"`
	Variables   map[string]any        `json:"variables,omitempty"`
}

func (r CreateWorkflowRequest) Workflow() *models.Workflow {
	return &models.Workflow{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Trigger:     r.Trigger,
		Actions:     r.Actions,
		Status:      r.Status,
		Enabled:     r.Enabled,
		Tags:        r.Tags,
		Variables:   r.Variables,
	}
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest = engine.WorkflowUpdate

// ExecuteWorkflowRequest runs a workflow by hand. Async queues the run and
// answers 202 with the pending execution.
type ExecuteWorkflowRequest struct {
	Input map[string]any `json:"input,omitempty"`
	Async bool           `json:"async,omitempty"`
}

// EventRequest is an input pushed through the API.
type EventRequest struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"                validate:"required"`
	Data      map[string]any `json:"data"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

func (r EventRequest) Input(source string) models.Input {
	return models.Input{
		ID:        r.ID,
		Type:      r.Type,
		Source:    source,
		Data:      r.Data,
		Context:   r.Context,
		Timestamp: r.Timestamp,
	}
}

// EventResponse lists the executions an input produced.
type EventResponse struct {
	Executions []*models.Execution `json:"executions"`
	Count      int                 `json:"count"`
}
