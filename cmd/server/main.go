package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/database"
	"github.com/stemsi/tubequiz/internal/handler"
	"github.com/stemsi/tubequiz/internal/logger"
	"github.com/stemsi/tubequiz/internal/repository"
	"github.com/stemsi/tubequiz/internal/router"
	"github.com/stemsi/tubequiz/internal/service"
	"github.com/stemsi/tubequiz/internal/validator"
	"github.com/stemsi/tubequiz/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting TubeQuiz Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	resultRepo := repository.NewQuizResultRepository(pool)
	feedbackRepo := repository.NewFeedbackRepository(pool)
	activityRepo := repository.NewActivityRepository(pool)
	sessionStore := repository.NewSessionStore(rdb)
	workflowStore := repository.NewWorkflowStore(rdb, cfg.SessionTTL)

	// ─── Initialize Services ──────────────────────────────────────────
	activityService := service.NewActivityService(rdb, activityRepo, log)

	authService, err := service.NewAuthService(cfg, userRepo, sessionStore, workflowStore, activityService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize auth service")
	}

	videoService, err := service.NewVideoService(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize YouTube client")
	}

	quizGenerator, err := service.NewQuizGenerator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize quiz generator")
	}
	defer func() {
		if err := quizGenerator.Close(); err != nil {
			log.Warn().Err(err).Msg("Quiz generator close error")
		}
	}()

	feedbackService := service.NewFeedbackService(feedbackRepo, log)
	historyService := service.NewHistoryService(resultRepo, log)

	workflowService := service.NewWorkflowService(
		videoService,
		quizGenerator,
		workflowStore,
		sessionStore,
		resultRepo,
		feedbackService,
		service.WorkflowOptions{
			LockTTL:      cfg.LockTTL(),
			DebugEnabled: cfg.DebugPanelEnabled,
			DebugLines:   cfg.DebugLogLines,
			DebugLog:     logger.Recent,
		},
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Workflow: handler.NewWorkflowHandler(workflowService),
		History:  handler.NewHistoryHandler(historyService),
		WS:       handler.NewWSHandler(workflowService, log, cfg.AllowedOrigins),
		Health:   handler.NewHealthHandler(pool, handler.RedisPinger(rdb), rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	activityWorker := worker.NewActivityWorker(rdb, activityRepo, log)
	go func() {
		activityWorker.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r, err := router.SetupRouter(authService, handlers, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid router configuration")
	}

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. In-flight generations may take a while.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GenerationTimeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the activity worker and wait for the queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Activity worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
