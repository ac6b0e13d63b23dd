// Package trigger decides which workflows fire for an incoming input.
//
// Evaluation has no side effects. A trigger that cannot be evaluated is
// reported as a *TriggerEvaluationError, logged by Match and treated as not
// matching, so one broken workflow never blocks the others.
package trigger

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/blues/jsonata-go"
	"github.com/dukex/conductor/pkg/models"
)

// Evaluator matches inputs against workflow triggers.
type Evaluator struct {
	logger *slog.Logger

	mu          sync.RWMutex
	expressions map[string]*jsonata.Expr
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger:      logger.With("module", "trigger_evaluator"),
		expressions: make(map[string]*jsonata.Expr),
	}
}

// Match reports whether the workflow's trigger fires for input. Evaluation
// errors are logged and count as no match.
func (e *Evaluator) Match(workflow *models.Workflow, input models.Input) bool {
	ok, err := e.Evaluate(workflow, input)
	if err != nil {
		e.logger.Warn("Trigger evaluation failed",
			"workflow_id", workflow.ID,
			"event_type", input.Type,
			"error", err,
		)

		return false
	}

	return ok
}

// Evaluate is Match with the error surfaced.
func (e *Evaluator) Evaluate(workflow *models.Workflow, input models.Input) (bool, error) {
	t := workflow.Trigger

	switch t.Type {
	case models.TriggerTypeEvent:
	case models.TriggerTypeWebhook:
		if input.Source != models.InputSourceWebhook {
			return false, nil
		}
	default:
		// Manual and schedule triggers never fire from inputs.
		return false, nil
	}

	if !MatchEventType(t.Event, input.Type) {
		return false, nil
	}

	data := evaluationData(input)

	ok, err := Conditions(t.Conditions, t.Match, data)
	if err != nil {
		return false, &TriggerEvaluationError{WorkflowID: workflow.ID, Field: fieldOf(err), Err: err}
	}

	if !ok || t.Expression == "" {
		return ok, nil
	}

	ok, err = e.evaluateExpression(t.Expression, data)
	if err != nil {
		return false, &TriggerEvaluationError{WorkflowID: workflow.ID, Err: err}
	}

	return ok, nil
}

// MatchEventType reports whether eventType satisfies pattern. An empty
// pattern or "*" matches everything; glob patterns such as "contact.*" are
// supported.
func MatchEventType(pattern, eventType string) bool {
	if pattern == "" || pattern == "*" || pattern == eventType {
		return true
	}

	ok, err := path.Match(pattern, eventType)

	return err == nil && ok
}

type conditionError struct {
	field string
	err   error
}

func (c *conditionError) Error() string { return c.err.Error() }
func (c *conditionError) Unwrap() error { return c.err }

func fieldOf(err error) string {
	var ce *conditionError
	if errors.As(err, &ce) {
		return ce.field
	}

	return ""
}

// Conditions evaluates a condition list over data. An empty list matches.
func Conditions(conditions []models.Condition, mode models.MatchMode, data map[string]any) (bool, error) {
	if len(conditions) == 0 {
		return true, nil
	}

	anyMode := mode == models.MatchAny

	for _, cond := range conditions {
		actual, found := Resolve(data, cond.Field)

		ok, err := compare(cond.Operator, actual, found, cond.Value)
		if err != nil {
			return false, &conditionError{field: cond.Field, err: err}
		}

		if anyMode && ok {
			return true, nil
		}

		if !anyMode && !ok {
			return false, nil
		}
	}

	return !anyMode, nil
}

func (e *Evaluator) evaluateExpression(expression string, data map[string]any) (bool, error) {
	expr, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	result, err := expr.Eval(data)
	if err != nil {
		if errors.Is(err, jsonata.ErrUndefined) {
			return false, nil
		}

		return false, fmt.Errorf("evaluate expression: %w", err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrExpressionResult, result)
	}

	return b, nil
}

func (e *Evaluator) compile(expression string) (*jsonata.Expr, error) {
	e.mu.RLock()
	expr, ok := e.expressions[expression]
	e.mu.RUnlock()

	if ok {
		return expr, nil
	}

	expr, err := jsonata.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}

	e.mu.Lock()
	e.expressions[expression] = expr
	e.mu.Unlock()

	return expr, nil
}

// evaluationData exposes the input payload both at the top level and under
// "input", next to the optional "context" map.
func evaluationData(input models.Input) map[string]any {
	payload := input.Payload()

	data := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		data[k] = v
	}

	data["input"] = payload

	ctx := input.Context
	if ctx == nil {
		ctx = map[string]any{}
	}

	data["context"] = ctx

	return data
}

// Resolve walks a dotted path through nested maps and slices. Numeric
// segments index into slices.
func Resolve(data map[string]any, field string) (any, bool) {
	if field == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(field, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = v
		case []any:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}

			current = node[i]
		default:
			return nil, false
		}
	}

	return current, true
}

// Validate checks a trigger definition before it is stored.
func Validate(t models.Trigger) error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidTrigger, t.Type)
	}

	if t.Match != "" && t.Match != models.MatchAll && t.Match != models.MatchAny {
		return fmt.Errorf("%w: unsupported match mode %q", ErrInvalidTrigger, t.Match)
	}

	if t.Event != "" {
		if _, err := path.Match(t.Event, ""); err != nil {
			return fmt.Errorf("%w: bad event pattern %q", ErrInvalidTrigger, t.Event)
		}
	}

	for _, c := range t.Conditions {
		if c.Field == "" {
			return fmt.Errorf("%w: condition field is required", ErrInvalidTrigger)
		}

		if !c.Operator.Valid() {
			return fmt.Errorf("%w: %w %q", ErrInvalidTrigger, ErrUnknownOperator, c.Operator)
		}

		if c.Operator == models.OperatorMatches {
			if _, err := compileRegex(toString(c.Value)); err != nil {
				return fmt.Errorf("%w: condition on %s: %w", ErrInvalidTrigger, c.Field, err)
			}
		}
	}

	if t.Expression != "" {
		if _, err := jsonata.Compile(t.Expression); err != nil {
			return fmt.Errorf("%w: expression: %w", ErrInvalidTrigger, err)
		}
	}

	if t.Type == models.TriggerTypeSchedule {
		if t.Cron == "" {
			return fmt.Errorf("%w: schedule trigger requires a cron expression", ErrInvalidTrigger)
		}

		if _, err := models.ParseCron(t.Cron); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
		}
	}

	return nil
}
