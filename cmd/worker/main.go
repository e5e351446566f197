// File: cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canvascast/internal/config"
	"canvascast/internal/domain/ports/adapter"
	gen "canvascast/internal/infra/adapters/gen"
	pg "canvascast/internal/infra/db/postgres"
	"canvascast/internal/infra/logging"
	"canvascast/internal/infra/metrics"
	red "canvascast/internal/infra/redis"
	"canvascast/internal/infra/storage"
	"canvascast/internal/infra/web"
	"canvascast/internal/infra/worker"
	"canvascast/internal/pipeline"
	"canvascast/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled: deterministic generation adapters")
	}

	// ---- Postgres ----
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	jobRepo := pg.NewJobRepo(pool)
	projectRepo := pg.NewProjectRepo(pool)
	checkpointRepo := pg.NewCheckpointRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	queue := red.NewJobQueue(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Object storage ----
	store, err := storage.NewFSStore(cfg.Storage.RootDir)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// ---- Generation services ----
	services, err := buildServices(ctx, cfg, store)
	if err != nil {
		log.Fatalf("generation services: %v", err)
	}

	// ---- Use cases ----
	creditsUC := usecase.NewCreditsUseCase(ledgerRepo, tm, logger)
	costModel := usecase.CostModel{
		BaseCredits:      cfg.Credits.BaseCredits,
		CreditsPerMinute: cfg.Credits.CreditsPerMinute,
	}
	jobUC := usecase.NewJobUseCase(jobRepo, projectRepo, creditsUC, queue, costModel, logger)

	// ---- Pipeline ----
	checkpoints := pipeline.NewCheckpointStore(checkpointRepo, logger)
	advisor := pipeline.NewRecoveryAdvisor(pipeline.Steps())
	refund := pipeline.NewRefundPolicy(cfg.Credits.RefundThresholdPercent)
	runner := pipeline.NewRunner(
		jobRepo, projectRepo, checkpoints, advisor, refund, creditsUC, queue, services,
		pipeline.Config{
			MaxRetries:  cfg.Worker.MaxRetries,
			StepTimeout: cfg.Worker.StepTimeout,
			ObserveStep: metrics.ObserveStep,
		},
		logger,
	)
	dlq := pipeline.NewDLQManager(jobRepo, queue, logger)

	// ---- Workers ----
	wpool := worker.NewPool(cfg.Worker.Count, logger)
	wpool.Start(ctx)
	processor := worker.NewProcessor(
		queue, jobRepo, runner, locker,
		cfg.Worker.PollInterval, cfg.Worker.Lease, cfg.Worker.SweepEvery,
		logger,
	)
	go processor.Start(ctx, wpool)

	// ---- Admin HTTP ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", 30*time.Minute)
	srv := web.NewServer(jobUC, creditsUC, dlq, projectRepo, auth, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("admin api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	wpool.Stop()
}

// buildServices assembles the external generation stack. Dev mode swaps in
// deterministic local generators so the full pipeline runs with no keys, no
// network, and no ffmpeg.
func buildServices(ctx context.Context, cfg *config.Config, store adapter.ObjectStorage) (*pipeline.Services, error) {
	if cfg.Runtime.Dev {
		noop := gen.NewNoopGenerators()
		return &pipeline.Services{
			Script:      noop,
			Plan:        noop,
			Speech:      noop,
			Align:       noop,
			Images:      noop,
			Render:      noop,
			Store:       store,
			VideoWidth:  cfg.Generation.VideoWidth,
			VideoHeight: cfg.Generation.VideoHeight,
		}, nil
	}

	script, err := gen.NewOpenAIScriptAdapter(cfg.Generation.OpenAIKey, cfg.Generation.ScriptModel, cfg.Generation.PromptBudgetTokens)
	if err != nil {
		return nil, fmt.Errorf("script adapter: %w", err)
	}
	audio, err := gen.NewOpenAIAudioAdapter(cfg.Generation.OpenAIKey, cfg.Generation.SpeechModel, cfg.Generation.WhisperModel)
	if err != nil {
		return nil, fmt.Errorf("audio adapter: %w", err)
	}
	images, err := gen.NewGeminiImageAdapter(ctx, cfg.Generation.GeminiKey, cfg.Generation.ImageModel)
	if err != nil {
		return nil, fmt.Errorf("image adapter: %w", err)
	}
	renderer, err := gen.NewFFmpegRenderer(cfg.Generation.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	return &pipeline.Services{
		Script:      script,
		Plan:        script,
		Speech:      audio,
		Align:       audio,
		Images:      images,
		Render:      renderer,
		Store:       store,
		VideoWidth:  cfg.Generation.VideoWidth,
		VideoHeight: cfg.Generation.VideoHeight,
	}, nil
}
