// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"errors"
	"log/slog"

	"github.com/dukex/conductor/pkg/registry"
)

var ErrUnsupportedEventBus = errors.New("unsupported event bus provider")

// NewRegistry returns a registry holding every built-in action.
func NewRegistry(log *slog.Logger) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	err := reg.RegisterDefaultActions()
	if err != nil {
		return nil, err
	}

	return reg, nil
}
