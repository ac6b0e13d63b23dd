package module

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukex/conductor/pkg/models"
)

const (
	DefaultHealthInterval = 30 * time.Second
	defaultHealthTimeout  = 5 * time.Second
)

type entry struct {
	module    Module
	info      Info
	state     models.ModuleState
	healthy   bool
	message   string
	lastErr   error
	startedAt *time.Time
	checkedAt *time.Time
}

func (e *entry) snapshot() models.ModuleHealth {
	h := models.ModuleHealth{
		ID:           e.info.ID,
		Name:         e.info.Name,
		Dependencies: slices.Clone(e.info.Dependencies),
		State:        e.state,
		Healthy:      e.healthy,
		Message:      e.message,
		StartedAt:    e.startedAt,
		CheckedAt:    e.checkedAt,
	}

	if h.Dependencies == nil {
		h.Dependencies = []string{}
	}

	if e.lastErr != nil {
		h.LastError = e.lastErr.Error()
	}

	return h
}

// Orchestrator holds modules, starts them in registration order, stops them
// in reverse order and samples their health on a fixed interval.
type Orchestrator struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry

	healthInterval time.Duration
	healthTimeout  time.Duration
	healthMu       sync.Mutex
	healthCancel   context.CancelFunc
	healthDone     chan struct{}

	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHealthInterval sets the health sampling period.
func WithHealthInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.healthInterval = d
		}
	}
}

// WithHealthTimeout bounds a single module health check.
func WithHealthTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.healthTimeout = d
		}
	}
}

func NewOrchestrator(logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		entries:        make(map[string]*entry),
		healthInterval: DefaultHealthInterval,
		healthTimeout:  defaultHealthTimeout,
		logger:         logger.With("module", "orchestrator"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Register adds a module. The id must be unique.
func (o *Orchestrator) Register(m Module) error {
	info := m.Info()
	if err := info.Validate(); err != nil {
		return newError("register", info.ID, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.entries[info.ID]; exists {
		return newError("register", info.ID, ErrDuplicateModule)
	}

	o.entries[info.ID] = &entry{
		module: m,
		info:   info,
		state:  models.ModuleStateStopped,
	}
	o.order = append(o.order, info.ID)

	o.logger.Debug("Registered module", "module_id", info.ID, "dependencies", info.Dependencies)

	return nil
}

// IDs returns module ids in registration order.
func (o *Orchestrator) IDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return slices.Clone(o.order)
}

// Start initializes one module. Starting a running module is a no-op; a
// module in the error state may be started again.
func (o *Orchestrator) Start(ctx context.Context, id string) error {
	o.mu.Lock()

	e, ok := o.entries[id]
	if !ok {
		o.mu.Unlock()

		return newError("start", id, ErrModuleNotFound)
	}

	switch e.state {
	case models.ModuleStateRunning:
		o.mu.Unlock()

		return nil
	case models.ModuleStateInitializing, models.ModuleStateStopping:
		state := e.state
		o.mu.Unlock()

		return newError("start", id, fmt.Errorf("%w: module is %s", ErrInvalidTransition, state))
	}

	e.state = models.ModuleStateInitializing
	o.mu.Unlock()

	logger := o.logger.With("module_id", id)
	logger.InfoContext(ctx, "Initializing module")

	err := e.module.Initialize(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		e.state = models.ModuleStateError
		e.healthy = false
		e.lastErr = err
		e.message = "initialize failed"

		logger.ErrorContext(ctx, "Failed to initialize module", "error", err)

		return newError("start", id, err)
	}

	now := time.Now().UTC()
	e.state = models.ModuleStateRunning
	e.healthy = true
	e.lastErr = nil
	e.message = ""
	e.startedAt = &now

	logger.InfoContext(ctx, "Module running")

	return nil
}

// Stop shuts one module down. Stopping a stopped module is a no-op.
func (o *Orchestrator) Stop(ctx context.Context, id string) error {
	o.mu.Lock()

	e, ok := o.entries[id]
	if !ok {
		o.mu.Unlock()

		return newError("stop", id, ErrModuleNotFound)
	}

	if e.state == models.ModuleStateStopped {
		o.mu.Unlock()

		return nil
	}
	o.mu.Unlock()

	return o.shutdown(ctx, e)
}

func (o *Orchestrator) shutdown(ctx context.Context, e *entry) error {
	o.mu.Lock()
	e.state = models.ModuleStateStopping
	o.mu.Unlock()

	logger := o.logger.With("module_id", e.info.ID)
	logger.InfoContext(ctx, "Shutting down module")

	err := e.module.Shutdown(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		e.state = models.ModuleStateError
		e.healthy = false
		e.lastErr = err
		e.message = "shutdown failed"

		return newError("stop", e.info.ID, err)
	}

	e.state = models.ModuleStateStopped
	e.healthy = false
	e.message = ""
	e.startedAt = nil

	return nil
}

// StartAll initializes modules in registration order and stops at the first
// failure without rolling back the ones already running. On success the
// health loop is started.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	for _, id := range o.IDs() {
		if err := o.Start(ctx, id); err != nil {
			return err
		}
	}

	o.StartHealthLoop(ctx)

	return nil
}

// ShutdownAll stops the health loop and calls Shutdown on every module in
// reverse registration order. Failures are logged and do not stop the rest.
func (o *Orchestrator) ShutdownAll(ctx context.Context) {
	o.StopHealthLoop()

	ids := o.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		o.mu.RLock()
		e := o.entries[ids[i]]
		o.mu.RUnlock()

		if err := o.shutdown(ctx, e); err != nil {
			o.logger.ErrorContext(ctx, "Failed to shut down module", "module_id", ids[i], "error", err)
		}
	}

	o.logger.InfoContext(ctx, "All modules shut down")
}

// StartHealthLoop launches periodic health sampling. It is a no-op when the
// loop is already running.
func (o *Orchestrator) StartHealthLoop(ctx context.Context) {
	o.healthMu.Lock()
	defer o.healthMu.Unlock()

	if o.healthCancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	o.healthCancel = cancel
	o.healthDone = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(o.healthInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				o.CheckHealth(loopCtx)
			}
		}
	}()

	o.logger.InfoContext(ctx, "Health loop started", "interval", o.healthInterval)
}

// StopHealthLoop cancels the health loop and waits for it to exit.
func (o *Orchestrator) StopHealthLoop() {
	o.healthMu.Lock()
	cancel, done := o.healthCancel, o.healthDone
	o.healthCancel, o.healthDone = nil, nil
	o.healthMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// CheckHealth samples every running module once. It never returns an error:
// failures are recorded on the snapshot and logged.
func (o *Orchestrator) CheckHealth(ctx context.Context) {
	o.mu.RLock()
	entries := make([]*entry, 0, len(o.order))
	for _, id := range o.order {
		entries = append(entries, o.entries[id])
	}
	o.mu.RUnlock()

	for _, e := range entries {
		o.mu.RLock()
		state, lastErr := e.state, e.lastErr
		o.mu.RUnlock()

		logger := o.logger.With("module_id", e.info.ID)

		switch state {
		case models.ModuleStateError:
			logger.ErrorContext(ctx, "Module is in error state", "error", lastErr)

			continue
		case models.ModuleStateRunning:
		default:
			continue
		}

		err := o.probe(ctx, e.module)
		now := time.Now().UTC()

		o.mu.Lock()
		e.checkedAt = &now
		if err != nil {
			e.healthy = false
			e.message = err.Error()
		} else {
			e.healthy = true
			e.message = ""
		}
		o.mu.Unlock()

		if err != nil {
			logger.ErrorContext(ctx, "Module health check failed", "error", err)
		}
	}
}

func (o *Orchestrator) probe(ctx context.Context, m Module) (err error) {
	checkCtx, cancel := context.WithTimeout(ctx, o.healthTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("health check panicked: %v", r)
		}
	}()

	return m.HealthCheck(checkCtx)
}

// Health returns a snapshot of one module.
func (o *Orchestrator) Health(id string) (models.ModuleHealth, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.entries[id]
	if !ok {
		return models.ModuleHealth{}, newError("health", id, ErrModuleNotFound)
	}

	return e.snapshot(), nil
}

// AllHealth returns snapshots of every module in registration order.
func (o *Orchestrator) AllHealth() []models.ModuleHealth {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]models.ModuleHealth, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.entries[id].snapshot())
	}

	return out
}
