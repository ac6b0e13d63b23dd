package engine

import (
	"errors"
	"fmt"

	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/trigger"
	"github.com/go-playground/validator/v10"
)

// normalize fills generated defaults: draft status, action ids, schedule
// metadata, and an enabled flag that agrees with an explicit status.
func normalize(wf *models.Workflow) {
	if wf.Status == "" {
		wf.Status = models.WorkflowStatusDraft
	}

	switch wf.Status {
	case models.WorkflowStatusActive:
		wf.Enabled = true
	case models.WorkflowStatusPaused:
		wf.Enabled = false
	}

	if wf.Trigger.Match == "" {
		wf.Trigger.Match = models.MatchAll
	}

	for i := range wf.Actions {
		if wf.Actions[i].ID == "" {
			wf.Actions[i].ID = fmt.Sprintf("%s-%d", wf.Actions[i].Type, i+1)
		}
	}

	if wf.Trigger.Type == models.TriggerTypeSchedule {
		if wf.Schedule == nil || wf.Schedule.CronExpression != wf.Trigger.Cron {
			wf.Schedule = &models.Schedule{CronExpression: wf.Trigger.Cron}
		}
	} else {
		wf.Schedule = nil
	}
}

func (e *Engine) validateWorkflow(wf *models.Workflow) error {
	err := e.validate.Struct(wf)
	if err != nil {
		return fieldError(err)
	}

	if !wf.Status.Valid() {
		return &ValidationError{Field: "Workflow.Status", Message: fmt.Sprintf("unsupported status %q", wf.Status)}
	}

	err = trigger.Validate(wf.Trigger)
	if err != nil {
		return &ValidationError{Field: "Workflow.Trigger", Message: err.Error(), Err: err}
	}

	seen := make(map[string]struct{}, len(wf.Actions))

	for i, action := range wf.Actions {
		field := fmt.Sprintf("Workflow.Actions[%d]", i)

		if _, dup := seen[action.ID]; dup {
			return &ValidationError{Field: field + ".ID", Message: fmt.Sprintf("duplicate action id %q", action.ID)}
		}

		seen[action.ID] = struct{}{}

		if action.Timeout < 0 {
			return &ValidationError{Field: field + ".Timeout", Message: "must not be negative"}
		}

		if action.Retry != nil && action.Retry.Delay < 0 {
			return &ValidationError{Field: field + ".Retry.Delay", Message: "must not be negative"}
		}

		err := e.registry.ValidateParameters(action.Type, action.Parameters)
		if err != nil {
			return &ValidationError{Field: field + ".Parameters", Message: err.Error(), Err: err}
		}
	}

	return nil
}

func (e *Engine) validateInput(input models.Input) error {
	err := e.validate.Struct(input)
	if err != nil {
		return &ValidationError{Field: "Input.Type", Message: "is required", Err: err}
	}

	return nil
}

// fieldError reports the first struct tag violation.
func fieldError(err error) error {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]

		return &ValidationError{
			Field:   fe.Namespace(),
			Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
			Err:     err,
		}
	}

	return &ValidationError{Message: err.Error(), Err: err}
}
