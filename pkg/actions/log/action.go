// Package log provides the log action, which writes a templated message to the process logger.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/template"
)

// Action logs Message at Level.
type Action struct {
	Message string
	Level   slog.Level
}

// NewLogAction builds a log action; unknown levels fall back to info.
func NewLogAction(config map[string]any) *Action {
	message, _ := config["message"].(string)
	level, _ := config["level"].(string)

	return &Action{
		Message: message,
		Level:   parseLevel(level),
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Execute renders the message and logs it with the execution ids attached.
func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	message, err := template.RenderString(a.Message, &executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render message template: %w", err)
	}

	logger.Log(ctx, a.Level, message,
		"action_type", "log",
		"execution_id", executionCtx.ExecutionID,
		"workflow_id", executionCtx.WorkflowID,
	)

	return map[string]any{
		"message": message,
		"level":   strings.ToLower(a.Level.String()),
	}, nil
}
