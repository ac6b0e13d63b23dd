// Package engine is the automation engine: it owns workflow definitions, the
// live trigger set, the cron scheduler and the async run queue, and wires the
// trigger evaluator, action executor and execution ledger together.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/conductor/pkg/eventbus"
	"github.com/dukex/conductor/pkg/executor"
	"github.com/dukex/conductor/pkg/ledger"
	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/module"
	"github.com/dukex/conductor/pkg/otelhelper"
	"github.com/dukex/conductor/pkg/persistence"
	"github.com/dukex/conductor/pkg/registry"
	"github.com/dukex/conductor/pkg/trigger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/panjf2000/ants"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"
)

const (
	ModuleID = "engine"

	DefaultPoolSize = 16
)

// Engine is safe for concurrent use. Workflow records are copied in and out;
// callers never share memory with the engine.
type Engine struct {
	logger    *slog.Logger
	registry  *registry.Registry
	evaluator *trigger.Evaluator
	executor  *executor.Executor
	ledger    *ledger.Ledger
	validate  *validator.Validate
	store     persistence.Store
	publisher eventbus.Publisher
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string

	ledgerSize int
	poolSize   int

	mu        sync.RWMutex
	workflows map[string]*models.Workflow
	live      map[string]struct{}
	entries   map[string]cron.EntryID

	scheduler *cron.Cron

	poolMu   sync.RWMutex
	pool     *ants.PoolWithFunc
	inflight sync.WaitGroup
}

type Option func(*Engine)

// WithStore enables the write-through audit trail.
func WithStore(store persistence.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithPublisher enables lifecycle events.
func WithPublisher(publisher eventbus.Publisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithLedgerSize bounds the execution history kept in memory.
func WithLedgerSize(size int) Option {
	return func(e *Engine) {
		e.ledgerSize = size
	}
}

// WithPoolSize bounds concurrently running queued executions.
func WithPoolSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.poolSize = size
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithClock overrides the time source of the engine and its executor.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func New(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:     logger.With("module", ModuleID),
		registry:   reg,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		tracer:     otelhelper.NoopTracer(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		ledgerSize: ledger.DefaultMaxSize,
		poolSize:   DefaultPoolSize,
		workflows:  make(map[string]*models.Workflow),
		live:       make(map[string]struct{}),
		entries:    make(map[string]cron.EntryID),
		scheduler:  cron.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.evaluator = trigger.NewEvaluator(logger)
	e.executor = executor.New(reg, logger, executor.WithTracer(e.tracer), executor.WithClock(e.now))
	e.ledger = ledger.New(e.ledgerSize)

	return e
}

func (e *Engine) Info() module.Info {
	deps := make([]string, 0, 2)

	if e.store != nil {
		deps = append(deps, "persistence")
	}

	if e.publisher != nil {
		deps = append(deps, "event_bus")
	}

	return module.Info{ID: ModuleID, Name: "Automation Engine", Dependencies: deps}
}

// Initialize reloads workflows from the store, starts the run queue and the
// scheduler.
func (e *Engine) Initialize(ctx context.Context) error {
	err := e.reload(ctx)
	if err != nil {
		return err
	}

	pool, err := ants.NewPoolWithFunc(e.poolSize, func(payload interface{}) {
		j := payload.(*job)
		defer e.inflight.Done()

		e.execute(j.ctx, j.workflow, j.execution)
	})
	if err != nil {
		return err
	}

	e.poolMu.Lock()
	e.pool = pool
	e.poolMu.Unlock()

	e.scheduler.Start()

	e.logger.InfoContext(ctx, "Automation engine started", "workflows", e.workflowCount(), "pool_size", e.poolSize)

	return nil
}

// Shutdown stops the scheduler and waits for queued executions until ctx
// is done. Running executions are never cancelled.
func (e *Engine) Shutdown(ctx context.Context) error {
	<-e.scheduler.Stop().Done()

	e.poolMu.Lock()
	pool := e.pool
	e.pool = nil
	e.poolMu.Unlock()

	drained := make(chan struct{})

	go func() {
		e.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		e.logger.WarnContext(ctx, "Shutdown deadline reached with executions still running")
	}

	if pool != nil {
		pool.Release()
	}

	e.logger.InfoContext(ctx, "Automation engine stopped")

	return nil
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	e.poolMu.RLock()
	running := e.pool != nil
	e.poolMu.RUnlock()

	if !running {
		return ErrNotRunning
	}

	return nil
}

// Wait blocks until every queued execution has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) reload(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	docs, err := e.store.Search(ctx, persistence.WorkflowsCollection, persistence.Query{})
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, doc := range docs {
		var wf models.Workflow

		if err := doc.Decode(&wf); err != nil {
			e.logger.WarnContext(ctx, "Skipping unreadable workflow", "workflow_id", doc.ID, "error", err)

			continue
		}

		if _, exists := e.workflows[wf.ID]; exists {
			continue
		}

		e.workflows[wf.ID] = &wf

		if wf.IsLive() {
			e.activate(&wf)
		}
	}

	return nil
}

func (e *Engine) workflowCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.workflows)
}

// persist writes through to the store; failures are logged only.
func (e *Engine) persist(ctx context.Context, collection, id string, document any) {
	if e.store == nil {
		return
	}

	err := e.store.Index(context.WithoutCancel(ctx), collection, id, document)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to persist document", "collection", collection, "id", id, "error", err)
	}
}

func (e *Engine) unpersist(ctx context.Context, collection, id string) {
	if e.store == nil {
		return
	}

	err := e.store.Delete(context.WithoutCancel(ctx), collection, id)
	if err != nil && !persistence.IsDocumentNotFound(err) {
		e.logger.WarnContext(ctx, "Failed to delete document", "collection", collection, "id", id, "error", err)
	}
}
