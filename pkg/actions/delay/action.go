// Package delay provides the delay action, which pauses the workflow.
package delay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/protocol"
)

const maxDelay = 24 * time.Hour

var ErrInvalidDuration = errors.New("invalid delay duration")

type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() models.ActionType {
	return models.ActionTypeDelay
}

func (*ActionFactory) Name() string {
	return "Delay"
}

func (*ActionFactory) Description() string {
	return "Waits for a fixed duration before the next action runs."
}

func (*ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(config)
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration": map[string]any{
				"description": "Go duration string such as \"1s\" or \"250ms\", or a number of milliseconds.",
				"type":        []string{"string", "number"},
				"examples":    []any{"5s", 1500},
			},
		},
		"required": []string{"duration"},
	}
}

type Action struct {
	Duration time.Duration
}

func NewAction(config map[string]any) (*Action, error) {
	var d time.Duration

	switch v := config["duration"].(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDuration, err)
		}

		d = parsed
	case float64:
		d = time.Duration(v * float64(time.Millisecond))
	case int:
		d = time.Duration(v) * time.Millisecond
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, v)
	}

	if d < 0 || d > maxDelay {
		return nil, fmt.Errorf("%w: %s out of range", ErrInvalidDuration, d)
	}

	return &Action{Duration: d}, nil
}

// Execute sleeps unless the context ends first.
func (a *Action) Execute(ctx context.Context, _ models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger.DebugContext(ctx, "Delaying", "action_type", "delay", "duration", a.Duration)

	timer := time.NewTimer(a.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return map[string]any{"waited_ms": a.Duration.Milliseconds()}, nil
	}
}
