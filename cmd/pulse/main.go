package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/pulse/common/id"
	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/common/otel"
	"basegraph.app/pulse/core/config"
	"basegraph.app/pulse/core/db"
	"basegraph.app/pulse/internal/http/handler"
	"basegraph.app/pulse/internal/http/middleware"
	httprouter "basegraph.app/pulse/internal/http/router"
	"basegraph.app/pulse/internal/monitor"
	"basegraph.app/pulse/internal/queue"
	"basegraph.app/pulse/internal/runstate"
	"basegraph.app/pulse/internal/scheduler"
	"basegraph.app/pulse/internal/service/issue_tracker"
	"basegraph.app/pulse/internal/store"
	"basegraph.app/pulse/internal/textgen"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "pulse starting",
		"env", cfg.Env,
		"task_store", cfg.TaskStore.Provider,
		"text_generator", cfg.TextGen.Provider,
		"policy_profile", cfg.Monitor.PolicyProfile)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "node_id", cfg.NodeID, "error", err)
		os.Exit(1)
	}

	checks := map[string]handler.Pinger{}

	taskStore, botID, closeStore, err := setupTaskStore(ctx, cfg, checks)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up task store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	slog.InfoContext(ctx, "bot identity resolved", "bot_name", cfg.BotDisplayName, "bot_id", botID)

	rnd := monitor.NewRand(cfg.Monitor.RandomSeed)

	generator, err := textgen.New(cfg.TextGen, cfg.BotDisplayName, rnd)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create text generator", "error", err)
		os.Exit(1)
	}

	policyCfg, err := monitor.NewPolicyConfig(cfg.Monitor)
	if err != nil {
		slog.ErrorContext(ctx, "invalid policy configuration", "error", err)
		os.Exit(1)
	}

	engineCfg, err := monitor.NewEngineConfig(cfg.Monitor, botID)
	if err != nil {
		slog.ErrorContext(ctx, "invalid engine configuration", "error", err)
		os.Exit(1)
	}

	state := monitor.NewEngineState()
	var engineOpts []monitor.Option
	var schedulerOpts []scheduler.Option
	var notifications handler.NotificationSource

	if cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}

		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.NotificationStream)

		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

		statsStore := runstate.NewStatsStore(redisClient, cfg.Redis.KeyPrefix)
		if saved, ok, err := statsStore.Load(ctx); err != nil {
			slog.WarnContext(ctx, "failed to restore scan stats", "error", err)
		} else if ok {
			state.Restore(saved)
			slog.InfoContext(ctx, "scan stats restored",
				"cycles_performed", saved.CyclesPerformed,
				"comments_added", saved.CommentsAdded)
		}
		schedulerOpts = append(schedulerOpts, scheduler.WithStatsStore(statsStore))

		engineOpts = append(engineOpts, monitor.WithPublisher(
			queue.NewRedisPublisher(redisClient, cfg.Redis.NotificationStream, nil)))
		notifications = queue.NewRedisSubscriber(redisClient, cfg.Redis.NotificationStream, 25*time.Second)

		if cfg.Monitor.RevalidateBeforeWrite {
			engineOpts = append(engineOpts, monitor.WithGuard(
				runstate.NewCooldownGuard(redisClient, cfg.Redis.KeyPrefix, uuid.NewString())))
		}
	} else {
		slog.InfoContext(ctx, "redis disabled: stats are in-memory, no notification stream or cooldown guard")
	}

	engine := monitor.NewEngine(engineCfg, taskStore, generator, monitor.NewPolicy(policyCfg, rnd), rnd, state, engineOpts...)

	sched := scheduler.New(engine, scheduler.Config{
		Interval:       engineCfg.ScanInterval,
		FailureBackoff: engineCfg.FailureBackoff,
	}, schedulerOpts...)

	if cfg.Monitor.Autostart {
		if err := sched.Start(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Handlers{
		Health:        handler.NewHealthHandler(checks),
		Monitor:       handler.NewMonitorHandler(sched),
		Notifications: handler.NewNotificationHandler(notifications),
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop the scan loop first so no comment is written after the API goes away.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := sched.Stop(); err != nil && err != scheduler.ErrNotRunning {
			slog.ErrorContext(ctx, "scheduler stop error", "error", err)
		}
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded waiting for scan cycle")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// setupTaskStore connects the configured task store and resolves the bot's
// own identity through it.
func setupTaskStore(ctx context.Context, cfg config.Config, checks map[string]handler.Pinger) (monitor.TaskStore, string, func(), error) {
	switch cfg.TaskStore.Provider {
	case config.TaskStoreGitLab:
		tracker, err := issue_tracker.NewGitLabTracker(issue_tracker.GitLabConfig{
			BaseURL:           cfg.TaskStore.GitLab.BaseURL,
			Token:             cfg.TaskStore.GitLab.Token,
			ProjectIDs:        cfg.TaskStore.GitLab.ProjectIDs,
			CompletedLookback: cfg.TaskStore.CompletedLookback,
		})
		if err != nil {
			return nil, "", nil, err
		}
		projects, err := tracker.VerifyProjects(ctx)
		if err != nil {
			return nil, "", nil, fmt.Errorf("verifying gitlab projects: %w", err)
		}
		for _, p := range projects {
			slog.InfoContext(ctx, "monitoring gitlab project", "project_id", p.ID, "path", p.PathWithNS)
		}
		botID, _, err := tracker.Resolve(ctx, cfg.BotDisplayName)
		if err != nil {
			return nil, "", nil, fmt.Errorf("resolving bot identity: %w", err)
		}
		return tracker, botID, func() {}, nil

	default:
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, "", nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, "", nil, fmt.Errorf("migrating database: %w", err)
		}
		slog.InfoContext(ctx, "database connected")
		checks["database"] = database

		users := store.NewUserDirectory(database.Queries())
		if _, err := users.Ensure(ctx, cfg.BotDisplayName); err != nil {
			database.Close()
			return nil, "", nil, fmt.Errorf("registering bot user: %w", err)
		}
		botID, _, err := users.Resolve(ctx, cfg.BotDisplayName)
		if err != nil {
			database.Close()
			return nil, "", nil, fmt.Errorf("resolving bot identity: %w", err)
		}

		tasks, err := store.NewTaskStore(database.Queries(), store.NewTxRunner(database), botID, cfg.TaskStore.CompletedLookback)
		if err != nil {
			database.Close()
			return nil, "", nil, err
		}
		return tasks, botID, database.Close, nil
	}
}

func setupRouter(cfg config.Config, handlers httprouter.Handlers) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, handlers)

	return router
}

const banner = `
██████╗ ██╗   ██╗██╗     ███████╗███████╗
██╔══██╗██║   ██║██║     ██╔════╝██╔════╝
██████╔╝██║   ██║██║     ███████╗█████╗
██╔═══╝ ██║   ██║██║     ╚════██║██╔══╝
██║     ╚██████╔╝███████╗███████║███████╗
╚═╝      ╚═════╝ ╚══════╝╚══════╝╚══════╝
`
