package events

import (
	"testing"
	"time"

	"github.com/dukex/conductor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutionEvent_TypeFollowsStatus(t *testing.T) {
	wf := &models.Workflow{ID: "wf-1", Name: "welcome"}
	exec := models.NewExecution("exec-1", wf, models.TriggerTypeManual, nil)

	assert.Equal(t, ExecutionStartedEvent, NewExecutionEvent(exec).Type)

	exec.Finish(models.ExecutionStatusFailed, time.Now(), "boom")

	msg := NewExecutionEvent(exec)
	assert.Equal(t, ExecutionFailedEvent, msg.Type)
	assert.Equal(t, "boom", msg.Data["error"])
	assert.Equal(t, "wf-1", msg.Data["workflow_id"])
	assert.Contains(t, msg.Data, "duration_ms")

	exec.Status = models.ExecutionStatusCompleted
	assert.Equal(t, ExecutionCompletedEvent, NewExecutionEvent(exec).Type)
}

func TestNewWorkflowEvent(t *testing.T) {
	wf := &models.Workflow{
		ID:       "wf-1",
		Name:     "digest",
		Status:   models.WorkflowStatusActive,
		Enabled:  true,
		Trigger:  models.Trigger{Type: models.TriggerTypeSchedule, Cron: "0 9 * * *"},
		Schedule: &models.Schedule{CronExpression: "0 9 * * *"},
	}

	msg := NewWorkflowEvent(WorkflowScheduledEvent, wf)
	assert.Equal(t, WorkflowScheduledEvent, msg.Type)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "schedule", msg.Data["trigger_type"])
	assert.Equal(t, "0 9 * * *", msg.Data["cron"])
}

func TestInputEvent(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	input := models.Input{
		ID:        "evt-1",
		Type:      "contact.created",
		Source:    models.InputSourceEventBus,
		Data:      map[string]any{"email": "ana@example.com"},
		Timestamp: ts,
	}

	decoded, err := NewInputEvent(input).Input()
	require.NoError(t, err)
	assert.Equal(t, input.Type, decoded.Type)
	assert.Equal(t, input.Data, decoded.Data)
	assert.Equal(t, ts, decoded.Timestamp)

	_, err = New(WorkflowCreatedEvent, nil).Input()
	assert.Error(t, err)
}
