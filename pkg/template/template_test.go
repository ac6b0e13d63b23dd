package template

import (
	"testing"

	"github.com/dukex/conductor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
	}

	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John", result)

	result, err = Render("{{ .isNew }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// numbers always decode as float64
	result, err = Render("{{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_ObjectConstruction(t *testing.T) {
	data := map[string]any{
		"user":   map[string]any{"name": "Alice"},
		"orders": []any{1, 2},
	}

	result, err := Render(`{
		"user_name": "{{ .user.name }}",
		"total_orders": {{ len .orders }}
	}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", resultMap["user_name"])
	assert.Equal(t, 2.0, resultMap["total_orders"])
}

func TestRender_Errors(t *testing.T) {
	_, err := Render("{ invalid..expression }", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")

	_, err = Render("{{ nonexistent.field }}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")
}

func TestRenderWithContext(t *testing.T) {
	t.Setenv("CONDUCTOR_TEST_VAR", "from-env")

	executionCtx := &models.ExecutionContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Input:       map[string]any{"user_id": "u-42"},
		Steps:       map[string]any{"lookup": map[string]any{"status": 200}},
		Variables:   map[string]any{"endpoint": "https://api.example.com"},
	}

	result, err := RenderWithContext("{{ .vars.endpoint }}/users/{{ .input.user_id }}", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users/u-42", result)

	result, err = RenderWithContext("{{ if eq .steps.lookup.status 200 }}ok{{ else }}failed{{ end }}", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	result, err = RenderWithContext("{{ .env.CONDUCTOR_TEST_VAR }}:{{ .execution.workflow_id }}", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "from-env:wf-1", result)
}

func TestRenderString(t *testing.T) {
	executionCtx := &models.ExecutionContext{Input: map[string]any{"count": 3}}

	out, err := RenderString("count={{ .input.count }}", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "count=3", out)

	out, err = RenderString("42", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	out, err = RenderString(`{{ json .input }}`, executionCtx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3}`, out)
}
