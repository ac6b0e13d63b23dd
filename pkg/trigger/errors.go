package trigger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTrigger   = errors.New("invalid trigger")
	ErrUnknownOperator  = errors.New("unknown condition operator")
	ErrNotComparable    = errors.New("values are not comparable")
	ErrExpressionResult = errors.New("expression did not yield a boolean")
)

// TriggerEvaluationError is returned when a trigger could not be evaluated
// against an input. The workflow is treated as not matching.
type TriggerEvaluationError struct {
	WorkflowID string
	Field      string
	Err        error
}

func (e *TriggerEvaluationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("evaluate trigger of workflow %s on field %s: %v", e.WorkflowID, e.Field, e.Err)
	}

	return fmt.Sprintf("evaluate trigger of workflow %s: %v", e.WorkflowID, e.Err)
}

func (e *TriggerEvaluationError) Unwrap() error {
	return e.Err
}

// IsEvaluationError checks if an error came from trigger evaluation.
func IsEvaluationError(err error) bool {
	var evalErr *TriggerEvaluationError

	return errors.As(err, &evalErr)
}
