package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/conductor/pkg/engine"
	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/module"
	"github.com/dukex/conductor/pkg/protocol"
	"github.com/dukex/conductor/pkg/registry"
	"github.com/dukex/conductor/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAction struct{}

func (echoAction) Execute(_ context.Context, c models.ExecutionContext, _ *slog.Logger) (map[string]any, error) {
	return map[string]any{"input": c.Input}, nil
}

type echoFactory struct{}

func (echoFactory) ID() models.ActionType  { return "echo" }
func (echoFactory) Name() string           { return "Echo" }
func (echoFactory) Description() string    { return "Returns its input" }
func (echoFactory) Schema() map[string]any { return nil }

func (echoFactory) Create(context.Context, map[string]any) (protocol.Action, error) {
	return echoAction{}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   map[string]any  `json:"error"`
	Details string          `json:"details"`
}

func setupTestApp(t *testing.T) (*fiber.App, *engine.Engine) {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	require.NoError(t, reg.RegisterAction(echoFactory{}))

	eng := engine.New(reg, slog.Default())

	orchestrator := module.NewOrchestrator(slog.Default())
	require.NoError(t, orchestrator.Register(eng))
	require.NoError(t, orchestrator.StartAll(t.Context()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		orchestrator.ShutdownAll(ctx)
	})

	handlers := web.NewAPIHandlers(eng, orchestrator, validator.New(validator.WithRequiredStructEnabled()))

	return web.NewApp(handlers), eng
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}

	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))

	return v
}

func orderWorkflow() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:    "Order follow-up",
		Trigger: models.Trigger{Type: models.TriggerTypeEvent, Event: "order.created"},
		Actions: []models.Action{{ID: "echo", Type: "echo"}},
		Status:  models.WorkflowStatusActive,
		Tags:    []string{"orders"},
	}
}

func create(t *testing.T, app *fiber.App, req web.CreateWorkflowRequest) models.Workflow {
	t.Helper()

	status, env := do(t, app, http.MethodPost, "/api/workflows", req)
	require.Equal(t, http.StatusCreated, status, env.Details)
	assert.Equal(t, "success", env.Status)

	return decode[models.Workflow](t, env)
}

func TestCreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "successful creation",
			requestBody:    orderWorkflow(),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - name too short",
			requestBody: web.CreateWorkflowRequest{
				Name:    "Or",
				Actions: []models.Action{{Type: "echo"}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Name",
		},
		{
			name:           "validation error - no actions",
			requestBody:    web.CreateWorkflowRequest{Name: "Orders"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Actions",
		},
		{
			name: "engine validation - unknown action type",
			requestBody: web.CreateWorkflowRequest{
				Name:    "Orders",
				Trigger: models.Trigger{Type: models.TriggerTypeManual},
				Actions: []models.Action{{Type: "teleport"}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "teleport",
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid JSON format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			status, env := do(t, app, http.MethodPost, "/api/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, status)

			if tt.expectedError != "" {
				assert.Equal(t, "error", env.Status)
				assert.Contains(t, env.Details, tt.expectedError)
				assert.Equal(t, "validation_error", env.Error["type"])
				assert.InDelta(t, float64(http.StatusBadRequest), env.Error["status"], 0)

				return
			}

			created := decode[models.Workflow](t, env)
			assert.NotEmpty(t, created.ID)
			assert.True(t, created.Enabled)
			assert.Equal(t, "echo", created.Actions[0].ID)
		})
	}
}

func TestCreateWorkflow_Conflict(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := orderWorkflow()
	req.ID = "wf-orders"

	create(t, app, req)

	status, env := do(t, app, http.MethodPost, "/api/workflows", req)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", env.Error["type"])
}

func TestWorkflowCRUD(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	created := create(t, app, orderWorkflow())

	draft := orderWorkflow()
	draft.Name = "Drafted"
	draft.Status = models.WorkflowStatusDraft
	create(t, app, draft)

	status, env := do(t, app, http.MethodGet, "/api/workflows?status=active&tags=orders", nil)
	require.Equal(t, http.StatusOK, status)

	listed := decode[[]models.Workflow](t, env)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	status, _ = do(t, app, http.MethodGet, "/api/workflows?enabled=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = do(t, app, http.MethodGet, "/api/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.Name, decode[models.Workflow](t, env).Name)

	status, env = do(t, app, http.MethodPatch, "/api/workflows/"+created.ID, map[string]any{"description": "updated"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "updated", decode[models.Workflow](t, env).Description)

	status, _ = do(t, app, http.MethodPatch, "/api/workflows/"+created.ID, map[string]any{"name": "ab"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = do(t, app, http.MethodPost, "/api/workflows/"+created.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, status)

	toggled := decode[models.Workflow](t, env)
	assert.False(t, toggled.Enabled)
	assert.Equal(t, models.WorkflowStatusPaused, toggled.Status)

	status, _ = do(t, app, http.MethodDelete, "/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, env = do(t, app, http.MethodGet, "/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "workflow_not_found", env.Error["type"])

	status, _ = do(t, app, http.MethodDelete, "/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestExecuteWorkflow(t *testing.T) {
	t.Parallel()

	app, eng := setupTestApp(t)

	created := create(t, app, orderWorkflow())

	status, env := do(t, app, http.MethodPost, "/api/workflows/"+created.ID+"/execute", web.ExecuteWorkflowRequest{
		Input: map[string]any{"order_id": "o-1"},
	})
	require.Equal(t, http.StatusOK, status, env.Details)

	exec := decode[models.Execution](t, env)
	assert.Equal(t, models.ExecutionStatusCompleted, exec.Status)
	assert.Equal(t, models.TriggerTypeManual, exec.Trigger)

	status, env = do(t, app, http.MethodPost, "/api/workflows/"+created.ID+"/execute", web.ExecuteWorkflowRequest{Async: true})
	require.Equal(t, http.StatusAccepted, status, env.Details)

	pending := decode[models.Execution](t, env)
	assert.Equal(t, models.ExecutionStatusPending, pending.Status)

	eng.Wait()

	status, env = do(t, app, http.MethodGet, "/api/executions/"+pending.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ExecutionStatusCompleted, decode[models.Execution](t, env).Status)

	status, env = do(t, app, http.MethodGet, "/api/workflows/"+created.ID+"/history?limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Execution](t, env), 1)

	status, env = do(t, app, http.MethodGet, "/api/workflows/"+created.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, decode[models.ExecutionStats](t, env).Completed)

	status, env = do(t, app, http.MethodGet, "/api/executions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Execution](t, env), 2)

	status, _ = do(t, app, http.MethodGet, "/api/executions/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodPost, "/api/workflows/missing/execute", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStats(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	status, env := do(t, app, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ExecutionStats{}, decode[models.ExecutionStats](t, env))

	status, _ = do(t, app, http.MethodGet, "/api/stats?from=2024-01-01T00:00:00Z&to=2024-12-31T00:00:00Z", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, app, http.MethodGet, "/api/stats?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestEvents(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	create(t, app, orderWorkflow())

	webhook := orderWorkflow()
	webhook.Name = "Webhook follow-up"
	webhook.Trigger = models.Trigger{Type: models.TriggerTypeWebhook, Event: "order.created"}
	create(t, app, webhook)

	status, env := do(t, app, http.MethodPost, "/api/events", web.EventRequest{
		Type: "order.created",
		Data: map[string]any{"order_id": "o-1"},
	})
	require.Equal(t, http.StatusOK, status, env.Details)

	result := decode[web.EventResponse](t, env)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "Order follow-up", result.Executions[0].WorkflowName)
	assert.Equal(t, models.InputSourceAPI, result.Executions[0].Input["event_source"])

	status, env = do(t, app, http.MethodPost, "/api/webhooks/order.created", map[string]any{"order_id": "o-2"})
	require.Equal(t, http.StatusOK, status, env.Details)
	assert.Equal(t, 2, decode[web.EventResponse](t, env).Count)

	status, _ = do(t, app, http.MethodPost, "/api/events", map[string]any{"data": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = do(t, app, http.MethodPost, "/api/events", web.EventRequest{Type: "refund.created"})
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, decode[web.EventResponse](t, env).Count)
}

func TestModules(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	status, env := do(t, app, http.MethodGet, "/api/modules", nil)
	require.Equal(t, http.StatusOK, status)

	modules := decode[[]models.ModuleHealth](t, env)
	require.Len(t, modules, 1)
	assert.Equal(t, engine.ModuleID, modules[0].ID)
	assert.Equal(t, models.ModuleStateRunning, modules[0].State)

	status, _ = do(t, app, http.MethodGet, "/api/modules/engine", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, app, http.MethodGet, "/api/modules/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "module_not_found", env.Error["type"])
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		_ = resp.Body.Close()
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}
