// Package registry holds the action handler table the executor dispatches through.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrActionNotRegistered = errors.New("action type not registered")
	ErrInvalidParameters   = errors.New("invalid action parameters")
)

// ParameterError lists every schema violation of one action's parameters.
type ParameterError struct {
	ActionType models.ActionType
	Details    []string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameters for action type '%s': %s", e.ActionType, strings.Join(e.Details, "; "))
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameters
}

type entry struct {
	factory protocol.ActionFactory
	schema  *gojsonschema.Schema
}

type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[models.ActionType]entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log.With("module", "registry"),
		entries: make(map[models.ActionType]entry),
	}
}

// RegisterAction adds a factory, replacing any earlier one for the same type.
// The factory schema is compiled once here.
func (r *Registry) RegisterAction(factory protocol.ActionFactory) error {
	var schema *gojsonschema.Schema

	if raw := factory.Schema(); raw != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
		if err != nil {
			return fmt.Errorf("compile schema for action type '%s': %w", factory.ID(), err)
		}

		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[factory.ID()] = entry{factory: factory, schema: schema}

	r.logger.Debug("Registered action", "type", factory.ID())

	return nil
}

// ValidateParameters checks params against the schema of actionType.
func (r *Registry) ValidateParameters(actionType models.ActionType, params map[string]any) error {
	r.mu.RLock()
	e, ok := r.entries[actionType]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: '%s'", ErrActionNotRegistered, actionType)
	}

	if e.schema == nil {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	result, err := e.schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("validate parameters for action type '%s': %w", actionType, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return &ParameterError{ActionType: actionType, Details: details}
}

// CreateAction validates params and builds an action of the given type.
func (r *Registry) CreateAction(ctx context.Context, actionType models.ActionType, params map[string]any) (protocol.Action, error) {
	if err := r.ValidateParameters(actionType, params); err != nil {
		return nil, err
	}

	r.mu.RLock()
	e := r.entries[actionType]
	r.mu.RUnlock()

	if params == nil {
		params = map[string]any{}
	}

	return e.factory.Create(ctx, params)
}

// IsActionRegistered reports whether actionType has a factory.
func (r *Registry) IsActionRegistered(actionType models.ActionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[actionType]

	return ok
}

// GetAvailableActions returns the registered factories ordered by type.
func (r *Registry) GetAvailableActions() []protocol.ActionFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.ActionFactory, 0, len(r.entries))
	for _, e := range r.entries {
		factories = append(factories, e.factory)
	}

	slices.SortFunc(factories, func(a, b protocol.ActionFactory) int {
		return strings.Compare(string(a.ID()), string(b.ID()))
	})

	return factories
}
