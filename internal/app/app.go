package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"budgetpulse/internal/config"
	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/infrastructure"
	customMiddleware "budgetpulse/internal/middleware"
	"budgetpulse/internal/operations"
	"budgetpulse/internal/services"
	"budgetpulse/internal/tools"
	handlers "budgetpulse/internal/transport/http"
	ws "budgetpulse/internal/websocket"
)

// AppName is reported in startup logs
const AppName = "BudgetPulse"

var (
	// Version is set at build time with -ldflags "-X budgetpulse/internal/app.Version=..."
	Version = "1.0.0"
	// BuildTime is set at build time
	BuildTime = ""
)

const runtimeSampleInterval = 15 * time.Second

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	ErrorHandler  *apierrors.ErrorHandler

	JobStore     operations.JobStore
	Workspaces   *operations.Workspaces
	WebSocketHub *ws.Hub
	Broadcaster  *operations.StatusBroadcaster
	JobQueue     *operations.JobQueue
	Sweeper      *operations.Sweeper
	Runtime      *infrastructure.RuntimeCollector
	Services     *ServiceContainer

	stopBackground context.CancelFunc
	background     sync.WaitGroup
	stopOnce       sync.Once
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Analysis  *services.AnalysisService
	Health    *services.HealthService
	Providers *services.ProviderService
	Tools     *services.ToolService
}

// NewApplication loads configuration from the environment and config file
// and builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component from cfg. Nothing runs until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}

	if err := a.initializeServices(); err != nil {
		if a.JobStore != nil {
			a.JobStore.Close()
		}
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices builds the job pipeline and the services around it
func (a *Application) initializeServices() error {
	ctx := context.Background()

	store, err := operations.OpenJobStore(a.Config.Jobs.Store, a.Paths.JobsDB)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	a.JobStore = store

	if sqlite, ok := store.(*operations.SQLiteJobStore); ok {
		n, err := sqlite.RecoverInterrupted(ctx)
		if err != nil {
			return fmt.Errorf("failed to recover interrupted jobs: %w", err)
		}
		if n > 0 {
			a.Logger.WarnContext(ctx, "marked interrupted jobs as failed", slog.Int("count", n))
		}
	}

	workspaces, err := operations.NewWorkspaces(a.Paths.WorkspaceDir)
	if err != nil {
		return fmt.Errorf("failed to prepare workspaces: %w", err)
	}
	a.Workspaces = workspaces

	wsMetrics, err := ws.NewOTelMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to initialize WebSocket metrics: %w", err)
	}
	hub := ws.NewHub(a.Logger, wsMetrics)
	hub.SetKeepalive(a.Config.WebSocket.PingPeriod, a.Config.WebSocket.PongWait)
	a.WebSocketHub = hub
	a.Broadcaster = operations.NewStatusBroadcaster(hub, a.Logger)

	jobsCfg := operations.ConfigFrom(a.Config.Jobs)
	registry, err := operations.NewPipelineRegistry(a.Logger, &operations.StageOptions{
		Config:  jobsCfg,
		Metrics: a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to register pipeline stages: %w", err)
	}

	manager := operations.NewManager(registry, a.Broadcaster, operations.NewOperationTracer(nil, a.Metrics), a.Logger)
	a.JobQueue = operations.NewJobQueue(jobsCfg, store, manager, workspaces, a.Logger)
	a.Sweeper = operations.NewSweeper(jobsCfg, store, workspaces, a.Metrics, a.Logger)

	runtime, err := infrastructure.NewRuntimeCollector(a.OTelProviders.Meter, runtimeSampleInterval)
	if err != nil {
		return fmt.Errorf("failed to create runtime collector: %w", err)
	}
	a.Runtime = runtime

	toolRegistry, err := tools.NewStageRegistry(a.Logger, a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to register stage tools: %w", err)
	}

	a.Services = &ServiceContainer{
		Analysis:  services.NewAnalysisService(a.JobQueue, a.Logger),
		Providers: services.NewProviderService(a.Config.Providers),
		Tools:     services.NewToolService(toolRegistry, a.Logger),
		Health: services.NewHealthService(Version, BuildTime, services.HealthDeps{
			Store:      store,
			Workspaces: workspaces,
			Queue:      a.JobQueue,
			Hub:        hub,
		}, a.Logger),
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP first; they do not wrap the ResponseWriter
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Status stream stays outside the request timeout
	r.With(customMiddleware.StructuredLogger(a.Logger), a.ErrorHandler.Recoverer).
		Handle("/ws", ws.NewHandler(a.WebSocketHub, ws.HandlerOptions{
			AllowedOrigins:  a.Config.Security.AllowedOrigins,
			ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		}, a.Logger))

	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	r.Group(func(r chi.Router) {
		// OTel → Logger → Recoverer → security → limits → Timeout
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(a.ErrorHandler.Recoverer)
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxUploadBytes))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	analysisHandler := handlers.NewAnalysisHandler(a.Services.Analysis, a.ErrorHandler, a.Config.Server.MaxUploadBytes, a.Logger)
	analysisHandler.Register(r)

	r.Get("/api-status", handlers.NewProviderHandler(a.Services.Providers).APIStatus)

	toolsHandler := handlers.NewToolsHandler(a.Services.Tools, a.ErrorHandler, a.Logger)
	r.Mount("/tools", toolsHandler.Routes())

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	r.Mount("/health", healthHandler.Routes())
	r.Get("/version", healthHandler.Version)
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// StartBackground starts the hub, job workers, retention sweeper and
// runtime metrics. Start calls it; tests serving Router directly call it too.
func (a *Application) StartBackground(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.stopBackground = cancel

	a.WebSocketHub.Start()
	a.JobQueue.Start(ctx)

	a.background.Add(2)
	go func() {
		defer a.background.Done()
		a.Runtime.Start(ctx)
	}()
	go func() {
		defer a.background.Done()
		a.Sweeper.Run(ctx)
	}()
}

// Start starts background services and the HTTP server. cancel is called
// if the server stops with an error.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("address", a.Server.Addr),
		slog.String("job_store", a.Config.Jobs.Store),
		slog.Int("workers", a.Config.Jobs.Workers))

	a.StartBackground(ctx)

	if err := a.Workspaces.Check(); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Server.Addr))
	return nil
}

// Stop gracefully stops the application: the server drains first, then
// queued jobs finish, then the hub and telemetry shut down
func (a *Application) Stop(ctx context.Context) error {
	var stopErr error
	a.stopOnce.Do(func() {
		stopErr = a.stop(ctx)
	})
	return stopErr
}

func (a *Application) stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Logger.InfoContext(ctx, "Stopping job queue")
	if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
		a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully", slog.String("error", err.Error()))
	}

	if a.stopBackground != nil {
		a.stopBackground()
	}
	a.background.Wait()
	a.Runtime.Stop()

	a.Broadcaster.Stop()
	a.WebSocketHub.Stop()

	if err := a.JobStore.Close(); err != nil {
		errs = append(errs, fmt.Errorf("job store close error: %w", err))
	}

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}
