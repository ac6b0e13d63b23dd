package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/conductor/pkg/eventbus"
	"github.com/dukex/conductor/pkg/events"
	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/module"
)

const IngestModuleID = "ingest"

// Ingest feeds trigger inputs published on the bus to the engine.
type Ingest struct {
	engine     *Engine
	subscriber eventbus.Subscriber
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewIngest(engine *Engine, subscriber eventbus.Subscriber, logger *slog.Logger) *Ingest {
	return &Ingest{
		engine:     engine,
		subscriber: subscriber,
		logger:     logger.With("module", IngestModuleID),
	}
}

func (i *Ingest) Info() module.Info {
	return module.Info{
		ID:           IngestModuleID,
		Name:         "Input Ingest",
		Dependencies: []string{"event_bus", ModuleID},
	}
}

func (i *Ingest) Initialize(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	err := i.subscriber.Subscribe(subCtx, events.InputTopic, i.handle)
	if err != nil {
		cancel()

		return err
	}

	i.mu.Lock()
	i.cancel = cancel
	i.mu.Unlock()

	i.logger.InfoContext(ctx, "Subscribed to inputs", "topic", events.InputTopic)

	return nil
}

func (i *Ingest) Shutdown(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}

	return nil
}

func (i *Ingest) HealthCheck(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cancel == nil {
		return ErrNotRunning
	}

	return nil
}

func (i *Ingest) handle(ctx context.Context, msg events.Message) error {
	input, err := msg.Input()
	if err != nil {
		return err
	}

	if input.Source == "" {
		input.Source = models.InputSourceEventBus
	}

	_, err = i.engine.HandleEvent(ctx, input)

	return err
}
