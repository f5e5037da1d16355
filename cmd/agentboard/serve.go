package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	agentapi "github.com/agentboard/agentboard/internal/agent/api"
	"github.com/agentboard/agentboard/internal/agent/credentials"
	"github.com/agentboard/agentboard/internal/agent/docker"
	"github.com/agentboard/agentboard/internal/agent/registry"
	"github.com/agentboard/agentboard/internal/agent/session"
	"github.com/agentboard/agentboard/internal/common/config"
	"github.com/agentboard/agentboard/internal/common/httpmw"
	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/common/tracing"
	"github.com/agentboard/agentboard/internal/db"
	"github.com/agentboard/agentboard/internal/events/bus"
	"github.com/agentboard/agentboard/internal/orchestrator"
	orchestratorapi "github.com/agentboard/agentboard/internal/orchestrator/api"
	"github.com/agentboard/agentboard/internal/orchestrator/executor"
	"github.com/agentboard/agentboard/internal/orchestrator/metrics"
	"github.com/agentboard/agentboard/internal/orchestrator/streaming"
	taskapi "github.com/agentboard/agentboard/internal/task/api"
	"github.com/agentboard/agentboard/internal/task/repository"
	"github.com/agentboard/agentboard/internal/task/service"
)

const (
	serverName      = "agentboard"
	shutdownTimeout = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithPath(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "directory containing config.yaml")
	return cmd
}

func serve(cfg *config.Config) error {
	// 1. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	log.Info("Starting agentboard...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Tracing
	if cfg.Tracing.Enabled {
		enabled, err := tracing.Init(ctx, cfg.Tracing.ServiceName)
		if err != nil {
			log.Warn("Failed to initialize tracing", zap.Error(err))
		} else if enabled {
			log.Info("Tracing enabled")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracing.Shutdown(shutdownCtx)
		}()
	}

	// 3. Storage
	pool, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	repo, err := repository.NewSQLRepository(pool)
	if err != nil {
		_ = pool.Close()
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer func() { _ = repo.Close() }()
	log.Info("Database ready", zap.String("driver", pool.Driver()))

	// 4. Event bus
	eventBus, err := newEventBus(cfg, log)
	if err != nil {
		return err
	}
	defer eventBus.Close()

	// 5. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	runMetrics := metrics.MustNewMetrics(reg)

	// 6. Agent runtime
	runner, checker, closeRunner, err := newRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRunner()

	// 7. Run components
	workspace, err := executor.NewWorkspace(cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("failed to prepare workspace root: %w", err)
	}
	profiles := registry.New(cfg.Agent)
	runs := executor.NewExecutor(repo, workspace, log, cfg.Execution.MaxConcurrent)
	orch := orchestrator.New(runner, profiles, repo, orchestrator.Options{
		RecorderQueueSize: cfg.Execution.RecorderQueueSize,
		WriteTimeout:      cfg.Execution.WriteTimeout(),
		FlushTimeout:      cfg.Execution.FlushTimeout(),
		SheetTimeout:      cfg.Execution.SheetTimeout(),
		Bus:               eventBus,
		Metrics:           runMetrics,
	}, log)
	hub := streaming.NewHub(eventBus, log)
	boardService := service.NewService(repo, eventBus, log)

	// 8. HTTP server
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(httpmw.OtelTracing(serverName))
	router.Use(httpmw.RequestLogger(log, serverName))
	router.Use(httpmw.Recovery(log))
	router.Use(httpmw.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"activeRuns": runs.ActiveCount(),
			"wsClients":  hub.GetClientCount(),
			"bus":        eventBus.IsConnected(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	taskapi.SetupRoutes(v1, boardService, log)
	agentapi.SetupRoutes(v1, profiles, cfg.Agent.Runtime, checker, log)
	orchestratorapi.SetupRoutes(v1, runs, orch, hub, log, httpmw.RateLimit(cfg.Execution.StartsPerSecond))

	server := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeoutDuration(),
		// Zero disables the write timeout, runs stream for minutes.
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		// Request contexts end on shutdown so active runs cancel and close their streams.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down agentboard...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info("agentboard stopped")
	return err
}

func newEventBus(cfg *config.Config, log *logger.Logger) (bus.EventBus, error) {
	if cfg.NATS.URL == "" {
		log.Info("Using in-memory event bus")
		return bus.NewMemoryEventBus(log), nil
	}
	eventBus, err := bus.NewNATSEventBus(cfg.NATS, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("Connected to NATS event bus", zap.String("url", cfg.NATS.URL))
	return eventBus, nil
}

// newRunner picks the agent runtime and a probe for it. The returned close
// func is never nil.
func newRunner(ctx context.Context, cfg *config.Config, log *logger.Logger) (session.Runner, agentapi.Checker, func(), error) {
	env := credentials.NewEnvProvider("AGENTBOARD_").Env(cfg.Agent.ExtraEnv)

	switch cfg.Agent.Runtime {
	case "", "cli":
		log.Info("Using local agent CLI", zap.String("binary", cfg.Agent.Binary))
		checker := agentapi.CheckerFunc(func(context.Context) error {
			_, err := exec.LookPath(cfg.Agent.Binary)
			return err
		})
		return session.NewCLIRunner(cfg.Agent.Binary, env, log), checker, func() {}, nil
	case "docker":
		client, err := docker.NewClient(cfg.Docker, log)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		log.Info("Using docker agent runtime", zap.String("image", cfg.Agent.DockerImage))
		runner := session.NewDockerRunner(client, cfg.Agent.DockerImage, env, log)
		return runner, agentapi.CheckerFunc(client.Ping), func() { _ = client.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown agent runtime %q", cfg.Agent.Runtime)
	}
}
