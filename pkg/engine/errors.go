package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates no workflow exists for the id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowExists indicates a workflow with the same id already exists.
	ErrWorkflowExists = errors.New("workflow already exists")

	// ErrExecutionNotFound indicates no execution exists for the id.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrValidation indicates a malformed workflow, action or input.
	ErrValidation = errors.New("validation failed")

	// ErrNotRunning is returned by Enqueue before Initialize or after Shutdown.
	ErrNotRunning = errors.New("engine is not running")
)

// ValidationError carries the offending field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Message)
	}

	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// WorkflowError wraps workflow operation errors with the id involved.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func notFound(op, id string) error {
	return &WorkflowError{Op: op, WorkflowID: id, Err: ErrWorkflowNotFound}
}

// IsWorkflowNotFound checks if an error indicates an unknown workflow id.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an unknown execution id.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsValidation checks if an error is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
