package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/conductor/pkg/cmd"
	"github.com/dukex/conductor/pkg/engine"
	"github.com/dukex/conductor/pkg/eventbus"
	"github.com/dukex/conductor/pkg/ledger"
	"github.com/dukex/conductor/pkg/log"
	"github.com/dukex/conductor/pkg/module"
	"github.com/dukex/conductor/pkg/otelhelper"
	"github.com/dukex/conductor/pkg/persistence"
	"github.com/dukex/conductor/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"
)

const (
	defaultPort            = 9091
	defaultShutdownTimeout = 30 * time.Second
)

type config struct {
	port            int
	databaseURL     string
	eventBus        string
	kafkaBrokers    string
	logLevel        string
	workflowsFile   string
	healthInterval  time.Duration
	shutdownTimeout time.Duration
	ledgerSize      int
	poolSize        int
	otel            bool
}

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the automation engine and the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (memory://, file://path, redis://, postgres://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.DurationFlag{
				Name:    "health-interval",
				Usage:   "Interval between module health checks",
				Value:   module.DefaultHealthInterval,
				Sources: cli.EnvVars("HEALTH_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "shutdown-timeout",
				Usage:   "How long shutdown waits for running executions",
				Value:   defaultShutdownTimeout,
				Sources: cli.EnvVars("SHUTDOWN_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "ledger-max-size",
				Usage:   "Executions kept in the in-memory ledger",
				Value:   ledger.DefaultMaxSize,
				Sources: cli.EnvVars("LEDGER_MAX_SIZE"),
			},
			&cli.IntFlag{
				Name:    "worker-pool-size",
				Usage:   "Concurrent queued and scheduled executions",
				Value:   engine.DefaultPoolSize,
				Sources: cli.EnvVars("WORKER_POOL_SIZE"),
			},
			&cli.StringFlag{
				Name:    "workflows-file",
				Usage:   "YAML file of workflows created at startup",
				Sources: cli.EnvVars("WORKFLOWS_FILE"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			return run(ctx, config{
				port:            command.Int("port"),
				databaseURL:     command.String("database-url"),
				eventBus:        command.String("event-bus"),
				kafkaBrokers:    command.String("kafka-brokers"),
				logLevel:        command.String("log-level"),
				workflowsFile:   command.String("workflows-file"),
				healthInterval:  command.Duration("health-interval"),
				shutdownTimeout: command.Duration("shutdown-timeout"),
				ledgerSize:      command.Int("ledger-max-size"),
				poolSize:        command.Int("worker-pool-size"),
				otel:            command.Bool("otel"),
			})
		},
	}
}

func run(ctx context.Context, cfg config) error {
	log.Setup(cfg.logLevel)

	logger := log.WithModule("conductor")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "Initializing Conductor")

	tracer := otelhelper.NoopTracer()

	if cfg.otel {
		t, shutdown, err := otelhelper.NewTracer(ctx, "conductor")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()

		tracer = t
	}

	reg, err := cmd.NewRegistry(logger)
	if err != nil {
		return err
	}

	store, err := cmd.NewPersistence(ctx, logger, cfg.databaseURL)
	if err != nil {
		return err
	}

	bus, err := cmd.NewEventBus(cfg.eventBus, cfg.kafkaBrokers, logger)
	if err != nil {
		_ = store.Close(ctx)

		return err
	}

	eng := engine.New(reg, logger,
		engine.WithStore(store),
		engine.WithPublisher(bus),
		engine.WithLedgerSize(cfg.ledgerSize),
		engine.WithPoolSize(cfg.poolSize),
		engine.WithTracer(tracer),
	)

	orchestrator := module.NewOrchestrator(logger, module.WithHealthInterval(cfg.healthInterval))

	handlers := web.NewAPIHandlers(eng, orchestrator, validator.New(validator.WithRequiredStructEnabled()))

	for _, m := range []module.Module{
		storeModule(store),
		busModule(bus),
		eng,
		engine.NewIngest(eng, bus, logger),
		web.NewServer(web.NewApp(handlers), cfg.port, logger),
	} {
		if err := orchestrator.Register(m); err != nil {
			return err
		}
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.shutdownTimeout)
		defer cancel()

		orchestrator.ShutdownAll(shutdownCtx)
	}

	err = orchestrator.StartAll(ctx)
	if err != nil {
		shutdown()

		return err
	}

	if cfg.workflowsFile != "" {
		err = seed(ctx, eng, cfg.workflowsFile)
		if err != nil {
			shutdown()

			return err
		}
	}

	logger.InfoContext(ctx, "Conductor started", "port", cfg.port, "modules", orchestrator.IDs())

	<-ctx.Done()

	logger.Info("Shutting down Conductor")
	shutdown()

	return nil
}

func seed(ctx context.Context, eng *engine.Engine, path string) error {
	workflows, err := cmd.LoadWorkflows(path)
	if err != nil {
		return err
	}

	return cmd.SeedWorkflows(ctx, eng, workflows, log.WithModule("seed"))
}

func storeModule(store persistence.Store) module.Module {
	return &module.Func{
		ModuleInfo: module.Info{ID: "persistence", Name: "Persistence"},
		ShutdownFn: store.Close,
		HealthFn:   store.HealthCheck,
	}
}

func busModule(bus eventbus.EventBus) module.Module {
	return &module.Func{
		ModuleInfo: module.Info{ID: "event_bus", Name: "Event Bus"},
		ShutdownFn: func(context.Context) error {
			return bus.Close()
		},
	}
}
