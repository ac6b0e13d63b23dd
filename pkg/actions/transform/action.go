// Package transform provides data transformation action implementation using JSONata expressions.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blues/jsonata-go"
	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/protocol"
)

var ErrExpressionRequired = errors.New("transform expression is required")

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (h *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewTransformAction(config)
}

func (h *ActionFactory) ID() models.ActionType {
	return models.ActionTypeTransform
}

func (h *ActionFactory) Name() string {
	return "Transform"
}

func (h *ActionFactory) Description() string {
	return "Transforms execution data with a JSONata expression. An optional input expression selects the data to transform."
}

func (h *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "JSONata expression selecting the source data. Defaults to the whole context (input, steps, variables).",
				"examples": []string{
					"",
					"steps.fetch_users.body",
					"input",
				},
			},
			"expression": map[string]any{
				"type":        "string",
				"format":      "code",
				"minLength":   1,
				"description": "JSONata expression applied to the source data.",
				"examples": []string{
					"$.name",
					"{ \"fullName\": firstName & \" \" & lastName }",
					"$count(items)",
					"orders[total > 100]",
				},
			},
		},
		"required": []string{"expression"},
	}
}

type TransformAction struct {
	input      *jsonata.Expr
	expression *jsonata.Expr
}

func NewTransformAction(config map[string]any) (*TransformAction, error) {
	input, _ := config["input"].(string)
	expression, _ := config["expression"].(string)

	if expression == "" {
		return nil, ErrExpressionRequired
	}

	compiled, err := jsonata.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	a := &TransformAction{expression: compiled}

	if input != "" {
		a.input, err = jsonata.Compile(input)
		if err != nil {
			return nil, fmt.Errorf("invalid input expression: %w", err)
		}
	}

	return a, nil
}

// Execute returns the transformation under "result". An expression with no
// match yields a nil result rather than an error.
func (a *TransformAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "transform")

	data, err := a.extract(executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get input data: %w", err)
	}

	result, err := a.expression.Eval(data)
	if err != nil && !errors.Is(err, jsonata.ErrUndefined) {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	logger.DebugContext(ctx, "Transform completed")

	return map[string]any{"result": result}, nil
}

func (a *TransformAction) extract(executionCtx models.ExecutionContext) (any, error) {
	data := executionCtx.Data()

	if a.input == nil {
		return data, nil
	}

	selected, err := a.input.Eval(data)
	if errors.Is(err, jsonata.ErrUndefined) {
		return nil, nil
	}

	return selected, err
}
