package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/match-arena/config"
	"github.com/Dosada05/match-arena/db"
	"github.com/Dosada05/match-arena/events"
	"github.com/Dosada05/match-arena/handlers"
	"github.com/Dosada05/match-arena/realtime"
	"github.com/Dosada05/match-arena/repositories"
	api "github.com/Dosada05/match-arena/routes"
	"github.com/Dosada05/match-arena/scheduler"
	"github.com/Dosada05/match-arena/services"
	"github.com/Dosada05/match-arena/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.EnsureSchema(ctx, dbConn); err != nil {
		return err
	}

	// Архив спорных результатов (Cloudflare R2) необязателен
	var archive services.EvidenceArchive
	if cfg.R2.Enabled() {
		uploader, err := storage.NewR2Uploader(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		archive = services.NewDisputeArchive(uploader)
		logger.Info("Cloudflare R2 dispute archive initialized", slog.String("bucket", cfg.R2.BucketName))
	} else {
		logger.Warn("R2 is not configured, dispute evidence will not be archived")
	}

	sched, err := scheduler.New(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Error("scheduler shutdown failed", slog.Any("error", err))
		}
	}()

	// Инициализация репозиториев
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	disputeRepo := repositories.NewPostgresDisputeRepository(dbConn)
	statsRepo := repositories.NewPostgresPlayerStatsRepository(dbConn)

	// Инициализация сервисов
	bus := events.NewBus()
	reconciler := services.NewScoreReconciler(bus)
	timer := services.NewMatchTimer(sched, bus, logger)
	queue := services.NewMatchmakingQueue(matchRepo, statsRepo, bus, logger)
	coordinator := services.NewMatchLifecycleCoordinator(matchRepo, disputeRepo, reconciler, timer, queue, archive, bus, logger)
	defer coordinator.Close()
	logger.Info("services initialized")

	// WebSocket Hub получает все сигналы ядра
	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	stopForward := realtime.Forward(bus, hub)
	defer stopForward()
	logger.Info("WebSocket hub started")

	// Периодический проход очереди: пары могут появиться и без новых входов
	if _, err := sched.EveryWithContext(ctx, "matchmaking-sweep", cfg.MatchmakingSweepInterval, queue.RunSweep); err != nil {
		return err
	}
	logger.Info("matchmaking sweep scheduled", slog.Duration("interval", cfg.MatchmakingSweepInterval))

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Match:       handlers.NewMatchHandler(coordinator, reconciler),
		Timer:       handlers.NewTimerHandler(timer),
		Matchmaking: handlers.NewMatchmakingHandler(queue),
		Admin:       handlers.NewAdminHandler(coordinator),
		WebSocket:   handlers.NewWebSocketHandler(hub, cfg.CORSAllowedOrigins, logger),
	}, api.Options{
		JWTSecret:          []byte(cfg.JWTSecretKey),
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
	}
	return nil
}
