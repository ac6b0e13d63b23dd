// Package events defines the lifecycle notifications published on the event bus.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/conductor/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Bus topics.
const (
	Topic      = "conductor.events" // Workflow and execution lifecycle
	InputTopic = "conductor.inputs" // Trigger inputs consumed by the engine
)

const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent     EventType = "workflow.created"
	WorkflowUpdatedEvent     EventType = "workflow.updated"
	WorkflowDeletedEvent     EventType = "workflow.deleted"
	WorkflowScheduledEvent   EventType = "workflow.scheduled"
	WorkflowUnscheduledEvent EventType = "workflow.unscheduled"

	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	InputReceivedEvent EventType = "input.received"
)

// Message is the envelope carried on every topic.
type Message struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

func New(eventType EventType, data map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func NewWorkflowEvent(eventType EventType, workflow *models.Workflow) Message {
	data := map[string]any{
		"workflow_id":   workflow.ID,
		"workflow_name": workflow.Name,
		"status":        string(workflow.Status),
		"enabled":       workflow.Enabled,
		"trigger_type":  string(workflow.Trigger.Type),
	}

	if workflow.Schedule != nil {
		data["cron"] = workflow.Schedule.CronExpression

		if workflow.Schedule.NextRunAt != nil {
			data["next_run_at"] = workflow.Schedule.NextRunAt.Format(time.RFC3339)
		}
	}

	return New(eventType, data)
}

// NewExecutionEvent derives the event type from the execution status.
func NewExecutionEvent(exec *models.Execution) Message {
	eventType := ExecutionStartedEvent

	switch exec.Status {
	case models.ExecutionStatusCompleted:
		eventType = ExecutionCompletedEvent
	case models.ExecutionStatusFailed:
		eventType = ExecutionFailedEvent
	}

	data := map[string]any{
		"execution_id":  exec.ID,
		"workflow_id":   exec.WorkflowID,
		"workflow_name": exec.WorkflowName,
		"status":        string(exec.Status),
		"trigger":       string(exec.Trigger),
	}

	if exec.Error != "" {
		data["error"] = exec.Error
	}

	if exec.DurationMs != nil {
		data["duration_ms"] = *exec.DurationMs
	}

	return New(eventType, data)
}

func NewInputEvent(input models.Input) Message {
	msg := New(InputReceivedEvent, map[string]any{
		"id":      input.ID,
		"type":    input.Type,
		"source":  input.Source,
		"data":    input.Data,
		"context": input.Context,
	})

	if !input.Timestamp.IsZero() {
		msg.Timestamp = input.Timestamp
	}

	return msg
}

// Input decodes an input.received message.
func (m Message) Input() (models.Input, error) {
	if m.Type != InputReceivedEvent {
		return models.Input{}, fmt.Errorf("message %s is %q, not %q", m.ID, m.Type, InputReceivedEvent)
	}

	raw, err := json.Marshal(m.Data)
	if err != nil {
		return models.Input{}, fmt.Errorf("failed to encode input: %w", err)
	}

	var input models.Input

	err = json.Unmarshal(raw, &input)
	if err != nil {
		return models.Input{}, fmt.Errorf("failed to decode input: %w", err)
	}

	input.Timestamp = m.Timestamp

	return input, nil
}
