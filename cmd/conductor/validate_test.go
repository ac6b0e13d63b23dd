package main

import (
	"log/slog"
	"testing"

	"github.com/dukex/conductor/pkg/cmd"
	"github.com/dukex/conductor/pkg/engine"
	"github.com/dukex/conductor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWorkflows(t *testing.T) {
	reg, err := cmd.NewRegistry(slog.Default())
	require.NoError(t, err)

	valid := &models.Workflow{
		Name:    "Log orders",
		Trigger: models.Trigger{Type: models.TriggerTypeEvent, Event: "order.*"},
		Actions: []models.Action{{Type: models.ActionTypeDelay, Parameters: map[string]any{"duration": "1ms"}}},
	}

	err = validateWorkflows(t.Context(), slog.Default(), engine.New(reg, slog.Default()), []*models.Workflow{valid})
	require.NoError(t, err)

	invalid := &models.Workflow{
		Name:    "Broken",
		Trigger: models.Trigger{Type: models.TriggerTypeSchedule, Cron: "every tuesday"},
		Actions: []models.Action{{Type: models.ActionTypeDelay, Parameters: map[string]any{"duration": "1ms"}}},
	}

	err = validateWorkflows(t.Context(), slog.Default(), engine.New(reg, slog.Default()), []*models.Workflow{valid, invalid})
	require.ErrorIs(t, err, ErrInvalidWorkflows)
	assert.Contains(t, err.Error(), "1 of 2")
}
