package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukex/conductor/pkg/engine"
	"github.com/dukex/conductor/pkg/models"
	"gopkg.in/yaml.v3"
)

// WorkflowsFile is the seed file layout.
type WorkflowsFile struct {
	Workflows []*models.Workflow `yaml:"workflows"`
}

// LoadWorkflows reads workflow definitions from a YAML seed file.
func LoadWorkflows(path string) ([]*models.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflows file: %w", err)
	}

	var file WorkflowsFile

	err = yaml.Unmarshal(raw, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflows file %s: %w", path, err)
	}

	return file.Workflows, nil
}

// SeedWorkflows creates every workflow the engine does not already hold.
// Workflows reloaded from the store win over the seed file.
func SeedWorkflows(ctx context.Context, eng *engine.Engine, workflows []*models.Workflow, logger *slog.Logger) error {
	for _, wf := range workflows {
		_, err := eng.CreateWorkflow(ctx, wf)

		switch {
		case err == nil:
		case errors.Is(err, engine.ErrWorkflowExists):
			logger.DebugContext(ctx, "Seed workflow already present", "workflow_id", wf.ID)
		default:
			return fmt.Errorf("failed to seed workflow %q: %w", wf.Name, err)
		}
	}

	return nil
}
