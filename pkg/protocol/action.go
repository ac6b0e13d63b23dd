// Package protocol defines the contracts between the executor and action handlers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/conductor/pkg/models"
)

// Action is a configured handler ready to run one workflow step.
type Action interface {
	Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error)
}

// ActionFactory creates actions of one type and describes their parameters.
type ActionFactory interface {
	// Create builds an action from the step parameters.
	Create(ctx context.Context, params map[string]any) (Action, error)

	// ID is the action type this factory serves.
	ID() models.ActionType

	Name() string
	Description() string

	// Schema is the JSON Schema the step parameters must satisfy.
	Schema() map[string]any
}
