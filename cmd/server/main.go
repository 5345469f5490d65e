package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/config"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/database"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/handler"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/llm"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/logger"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/repository"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/router"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/service"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/telemetry"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/validator"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/worker"
	"github.com/rs/zerolog"
)

const llmRetryBackoff = 2 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("llm_provider", cfg.LLM.Provider).
		Msg("Starting timetable service")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Tracing ───────────────────────────────────────────────────────
	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}

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

	// ─── LLM Client ────────────────────────────────────────────────────
	var client llm.Client
	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("LLM_API_KEY not set, AI generation will use the built-in planner")
	} else {
		base, err := llm.New(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Timeout:  cfg.LLM.Timeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create LLM client")
		}
		client = llm.WithRetry(base, cfg.LLM.MaxRetries, llmRetryBackoff)
		if closer, ok := client.(interface{ Close() error }); ok {
			defer closer.Close()
		}
		log.Info().Str("model", client.Model()).Msg("LLM client ready")
	}

	generator := timetable.NewGenerator(client, timetable.GeneratorConfig{
		Options: timetable.Options{
			BufferMinutes: cfg.EventBufferMinutes,
			MaxDays:       cfg.MaxPlanDays,
		},
		MatchThreshold: cfg.TopicMatchThreshold,
		Fallback:       cfg.LLM.Fallback,
		MaxTokens:      cfg.LLM.MaxTokens,
	}, log)

	// ─── Initialize Repositories ───────────────────────────────────────
	timetableRepo := repository.NewTimetableRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	timetableService := service.NewTimetableService(timetableRepo, generator, rdb, cfg.ResultCacheTTL, log)
	jobService := service.NewJobService(rdb, cfg.JobTTL, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health:    handler.NewHealthHandler(database.Dependencies(pool, rdb)),
		Timetable: handler.NewTimetableHandler(timetableService, log),
		Job:       handler.NewJobHandler(jobService, log),
		WS:        handler.NewWSHandler(jobService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	generationWorker := worker.NewGenerationWorker(rdb, jobService, timetableService, cfg.WorkerConcurrency, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		generationWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

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

	// 1. Stop accepting new HTTP requests. Synchronous generations can run
	// for as long as the model timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the worker and wait for in-flight jobs.
	workerCancel()
	workers.Wait()

	// 3. Flush pending spans.
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Telemetry shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
