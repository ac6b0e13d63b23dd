// Package module manages the lifecycle and health supervision of service modules.
package module

import (
	"context"
	"fmt"
)

// Info describes a module's identity. Dependencies are informational: the
// orchestrator starts modules in registration order and never resolves them.
type Info struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("module id is required: %w", ErrInvalidModule)
	}

	if i.Name == "" {
		return fmt.Errorf("module name is required for %s: %w", i.ID, ErrInvalidModule)
	}

	return nil
}

// Module is a lifecycle-managed unit.
type Module interface {
	Info() Info
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// Func adapts plain functions into a Module. Nil functions are no-ops.
type Func struct {
	ModuleInfo   Info
	InitializeFn func(ctx context.Context) error
	ShutdownFn   func(ctx context.Context) error
	HealthFn     func(ctx context.Context) error
}

func (f *Func) Info() Info {
	return f.ModuleInfo
}

func (f *Func) Initialize(ctx context.Context) error {
	if f.InitializeFn == nil {
		return nil
	}

	return f.InitializeFn(ctx)
}

func (f *Func) Shutdown(ctx context.Context) error {
	if f.ShutdownFn == nil {
		return nil
	}

	return f.ShutdownFn(ctx)
}

func (f *Func) HealthCheck(ctx context.Context) error {
	if f.HealthFn == nil {
		return nil
	}

	return f.HealthFn(ctx)
}
