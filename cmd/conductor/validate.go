package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/conductor/pkg/cmd"
	"github.com/dukex/conductor/pkg/engine"
	"github.com/dukex/conductor/pkg/log"
	"github.com/dukex/conductor/pkg/models"
	"github.com/urfave/cli/v3"
)

var ErrInvalidWorkflows = errors.New("invalid workflows found")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check a workflows file without starting the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflows-file",
				Usage:    "YAML file of workflow definitions",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOWS_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("validate")

			workflows, err := cmd.LoadWorkflows(command.String("workflows-file"))
			if err != nil {
				return err
			}

			reg, err := cmd.NewRegistry(logger)
			if err != nil {
				return err
			}

			return validateWorkflows(ctx, logger, engine.New(reg, logger), workflows)
		},
	}
}

func validateWorkflows(ctx context.Context, logger *slog.Logger, eng *engine.Engine, workflows []*models.Workflow) error {
	failed := 0

	for i, wf := range workflows {
		_, err := eng.CreateWorkflow(ctx, wf)
		if err != nil {
			failed++

			logger.ErrorContext(ctx, "Invalid workflow", "index", i, "name", wf.Name, "error", err)

			continue
		}

		logger.InfoContext(ctx, "Workflow is valid", "index", i, "name", wf.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrInvalidWorkflows, failed, len(workflows))
	}

	return nil
}
