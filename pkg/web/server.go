package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/dukex/conductor/pkg/module"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

const ModuleID = "http"

var ErrServerNotRunning = errors.New("http server is not running")

// NewApp wires every route onto a fiber app.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Conductor API")
	})

	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api")

	w := api.Group("/workflows")
	w.Get("/", handlers.ListWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Post("/:id/toggle", handlers.ToggleWorkflow)
	w.Get("/:id/history", handlers.WorkflowHistory)
	w.Get("/:id/stats", handlers.WorkflowStats)

	api.Get("/executions", handlers.ListExecutions)
	api.Get("/executions/:id", handlers.GetExecution)
	api.Get("/stats", handlers.Stats)

	api.Post("/events", handlers.IngestEvent)
	api.Post("/webhooks/:event", handlers.Webhook)

	api.Get("/modules", handlers.ListModules)
	api.Get("/modules/:id", handlers.GetModule)

	return app
}

// Server runs the fiber app as an orchestrated module.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	errCh   chan error
}

func NewServer(app *fiber.App, port int, logger *slog.Logger) *Server {
	return &Server{
		app:    app,
		addr:   net.JoinHostPort("", strconv.Itoa(port)),
		logger: logger.With("module", ModuleID),
	}
}

func (s *Server) Info() module.Info {
	return module.Info{ID: ModuleID, Name: "HTTP API", Dependencies: []string{"engine"}}
}

func (s *Server) Initialize(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.app.Listen(s.addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	s.mu.Lock()
	s.running = true
	s.errCh = errCh
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "HTTP server listening", "addr", s.addr)

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return s.app.ShutdownWithContext(ctx)
}

// HealthCheck fails once Listen has returned.
func (s *Server) HealthCheck(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServerNotRunning
	}

	select {
	case err := <-s.errCh:
		s.running = false

		if err == nil {
			err = ErrServerNotRunning
		}

		return err
	default:
		return nil
	}
}
