// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/conductor/pkg/engine"
	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/module"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	engine       *engine.Engine
	orchestrator *module.Orchestrator
	validator    *validator.Validate
}

func NewAPIHandlers(
	engine *engine.Engine,
	orchestrator *module.Orchestrator,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:       engine,
		orchestrator: orchestrator,
		validator:    validator,
	}
}

func success(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Response{Status: statusSuccess, Data: data})
}

func (h *APIHandlers) ListWorkflows(c fiber.Ctx) error {
	filter, err := parseWorkflowFilter(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	return success(c, fiber.StatusOK, h.engine.ListWorkflows(c.Context(), filter))
}

func parseWorkflowFilter(c fiber.Ctx) (models.WorkflowFilter, error) {
	filter := models.WorkflowFilter{
		Status:      models.WorkflowStatus(c.Query("status")),
		TriggerType: models.TriggerType(c.Query("trigger_type")),
	}

	if enabledStr := c.Query("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return filter, err
		}

		filter.Enabled = &enabled
	}

	if tags := c.Query("tags"); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}

	return filter, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.engine.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusOK, workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.engine.CreateWorkflow(c.Context(), req.Workflow())
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusCreated, created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.engine.UpdateWorkflow(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusOK, updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.engine.DeleteWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ToggleWorkflow(c fiber.Ctx) error {
	toggled, err := h.engine.ToggleWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusOK, toggled)
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteWorkflowRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if req.Async {
		pending, err := h.engine.Enqueue(c.Context(), c.Params("id"), req.Input)
		if err != nil {
			return handleError(c, err)
		}

		return success(c, fiber.StatusAccepted, pending)
	}

	execution, err := h.engine.RunWorkflow(c.Context(), c.Params("id"), req.Input)
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusOK, execution)
}

func (h *APIHandlers) WorkflowHistory(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.engine.GetWorkflow(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	return success(c, fiber.StatusOK, h.engine.History(c.Context(), id, limit))
}

func (h *APIHandlers) WorkflowStats(c fiber.Ctx) error {
	stats, err := h.engine.WorkflowStats(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusOK, stats)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	return success(c, fiber.StatusOK, h.engine.History(c.Context(), c.Query("workflow_id"), limit))
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.engine.Execution(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusOK, execution)
}

// Stats accepts optional RFC 3339 from/to bounds.
func (h *APIHandlers) Stats(c fiber.Ctx) error {
	var r *models.TimeRange

	from, to := c.Query("from"), c.Query("to")
	if from != "" || to != "" {
		r = &models.TimeRange{}

		var err error

		if from != "" {
			if r.From, err = time.Parse(time.RFC3339, from); err != nil {
				return badRequest(c, "Invalid from: "+err.Error())
			}
		}

		if to != "" {
			if r.To, err = time.Parse(time.RFC3339, to); err != nil {
				return badRequest(c, "Invalid to: "+err.Error())
			}
		}
	}

	return success(c, fiber.StatusOK, h.engine.Stats(c.Context(), r))
}

func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req EventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.handleInput(c, req.Input(models.InputSourceAPI))
}

// Webhook treats the whole body as the input data; the event type comes
// from the path.
func (h *APIHandlers) Webhook(c fiber.Ctx) error {
	data := map[string]any{}

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&data); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	input := models.Input{
		ID:     c.Get("X-Request-Id"),
		Type:   c.Params("event"),
		Source: models.InputSourceWebhook,
		Data:   data,
	}

	return h.handleInput(c, input)
}

func (h *APIHandlers) handleInput(c fiber.Ctx, input models.Input) error {
	executions, err := h.engine.HandleEvent(c.Context(), input)
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusOK, EventResponse{Executions: executions, Count: len(executions)})
}

func (h *APIHandlers) ListModules(c fiber.Ctx) error {
	return success(c, fiber.StatusOK, h.orchestrator.AllHealth())
}

func (h *APIHandlers) GetModule(c fiber.Ctx) error {
	health, err := h.orchestrator.Health(c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return success(c, fiber.StatusOK, health)
}

// HealthCheck reports every module; any unhealthy module fails the check.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	modules := h.orchestrator.AllHealth()

	status := "healthy"
	httpStatus := http.StatusOK

	for _, m := range modules {
		if !m.Healthy {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable

			break
		}
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"modules":   modules,
		"timestamp": time.Now().UTC(),
	})
}

func queryInt(c fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}

	return strconv.Atoi(raw)
}
