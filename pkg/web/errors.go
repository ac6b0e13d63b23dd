package web

import (
	"errors"

	"github.com/dukex/conductor/pkg/engine"
	"github.com/dukex/conductor/pkg/module"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func problem(c fiber.Ctx, status int, kind, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(ErrorResponse{Status: statusError, Error: p, Details: detail})
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

// handleError maps engine and module errors onto HTTP statuses.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case engine.IsValidation(err):
		return badRequest(c, err.Error())

	case engine.IsWorkflowNotFound(err):
		return problem(c, fiber.StatusNotFound, "workflow_not_found", err.Error())

	case engine.IsExecutionNotFound(err):
		return problem(c, fiber.StatusNotFound, "execution_not_found", err.Error())

	case module.IsModuleNotFound(err):
		return problem(c, fiber.StatusNotFound, "module_not_found", err.Error())

	case errors.Is(err, engine.ErrWorkflowExists), module.IsDuplicateModule(err):
		return problem(c, fiber.StatusConflict, "conflict", err.Error())

	case errors.Is(err, engine.ErrNotRunning):
		return problem(c, fiber.StatusServiceUnavailable, "not_running", err.Error())

	default:
		return problem(c, fiber.StatusInternalServerError, "internal_error", err.Error())
	}
}
