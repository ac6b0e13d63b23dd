package executor

import (
	"errors"
	"fmt"

	"github.com/dukex/conductor/pkg/models"
)

// ErrActionFailed is matched by every ActionExecutionError.
var ErrActionFailed = errors.New("action failed")

// ActionExecutionError reports an action that kept failing after all its attempts.
type ActionExecutionError struct {
	ExecutionID string
	ActionID    string
	ActionType  models.ActionType
	Attempts    int
	Err         error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s (%s) failed after %d attempt(s): %v", e.ActionID, e.ActionType, e.Attempts, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}

func (e *ActionExecutionError) Is(target error) bool {
	return target == ErrActionFailed
}
