// Package script provides the script action, which runs JavaScript in an embedded goja VM.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dop251/goja"
	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/protocol"
)

var (
	ErrScriptRequired = errors.New("script source is required")
	ErrInterrupted    = errors.New("script interrupted")
)

// ActionFactory creates script actions.
type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() models.ActionType {
	return models.ActionTypeScript
}

func (*ActionFactory) Name() string {
	return "Script"
}

func (*ActionFactory) Description() string {
	return "Runs a JavaScript snippet. input, steps and variables are globals; the value of the last expression is the output."
}

func (*ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(config)
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{
				"type":        "string",
				"format":      "code",
				"minLength":   1,
				"description": "JavaScript source.",
				"examples": []string{
					"({ total: steps.fetch.body.items.length })",
					"input.amount * 1.1",
				},
			},
		},
		"required":             []string{"script"},
		"additionalProperties": false,
	}
}

// Action holds a compiled program. Every execution gets a fresh VM.
type Action struct {
	program *goja.Program
}

func NewAction(config map[string]any) (*Action, error) {
	source, _ := config["script"].(string)
	if source == "" {
		return nil, ErrScriptRequired
	}

	program, err := goja.Compile("script", source, false)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}

	return &Action{program: program}, nil
}

// Execute runs the program. Object results become the output map; any
// other value is returned under "result".
func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "script")

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	for name, value := range executionCtx.Data() {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("set global %s: %w", name, err)
		}
	}

	err := vm.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]any, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			args = append(args, arg.Export())
		}

		logger.InfoContext(ctx, "Script log", "args", args)

		return goja.Undefined()
	})
	if err != nil {
		return nil, fmt.Errorf("set global log: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ErrInterrupted)
	})
	defer stop()

	value, err := vm.RunProgram(a.program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}

		return nil, fmt.Errorf("script failed: %w", err)
	}

	exported := value.Export()
	if out, ok := exported.(map[string]any); ok {
		return out, nil
	}

	return map[string]any{"result": exported}, nil
}
