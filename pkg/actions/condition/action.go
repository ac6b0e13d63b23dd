// Package condition provides the condition action: it evaluates trigger-style
// conditions against the running execution and can halt the workflow.
package condition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/protocol"
	"github.com/dukex/conductor/pkg/trigger"
)

// ErrConditionNotMet is returned when fail_on_false is set and the conditions do not hold.
var ErrConditionNotMet = errors.New("condition not met")

type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() models.ActionType {
	return models.ActionTypeCondition
}

func (*ActionFactory) Name() string {
	return "Condition"
}

func (*ActionFactory) Description() string {
	return "Evaluates conditions over input, steps and variables. Optionally fails the execution when they do not hold."
}

func (*ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(config)
}

func (*ActionFactory) Schema() map[string]any {
	operators := make([]string, 0, len(models.Operators))
	for _, op := range models.Operators {
		operators = append(operators, string(op))
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"conditions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"field":    map[string]any{"type": "string", "minLength": 1},
						"operator": map[string]any{"type": "string", "enum": operators},
						"value":    map[string]any{},
					},
					"required": []string{"field", "operator"},
				},
			},
			"match": map[string]any{
				"type":    "string",
				"enum":    []string{string(models.MatchAll), string(models.MatchAny)},
				"default": string(models.MatchAll),
			},
			"fail_on_false": map[string]any{
				"type":        "boolean",
				"description": "Fail the action, and so the execution, when the conditions do not hold",
				"default":     false,
			},
		},
		"required": []string{"conditions"},
	}
}

type Action struct {
	Conditions  []models.Condition
	Match       models.MatchMode
	FailOnFalse bool
}

type params struct {
	Conditions  []models.Condition `json:"conditions"`
	Match       models.MatchMode   `json:"match"`
	FailOnFalse bool               `json:"fail_on_false"`
}

func NewAction(config map[string]any) (*Action, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}

	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}

	for _, c := range p.Conditions {
		if !c.Operator.Valid() {
			return nil, fmt.Errorf("%w: %q", trigger.ErrUnknownOperator, c.Operator)
		}
	}

	return &Action{Conditions: p.Conditions, Match: p.Match, FailOnFalse: p.FailOnFalse}, nil
}

// Execute reports the outcome under "result".
func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	ok, err := trigger.Conditions(a.Conditions, a.Match, executionCtx.Data())
	if err != nil {
		return nil, fmt.Errorf("evaluate conditions: %w", err)
	}

	logger.DebugContext(ctx, "Condition evaluated", "action_type", "condition", "result", ok)

	out := map[string]any{"result": ok}

	if !ok && a.FailOnFalse {
		return out, ErrConditionNotMet
	}

	return out, nil
}
