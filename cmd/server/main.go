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

	"github.com/dgallion1/techspec/internal/api"
	"github.com/dgallion1/techspec/internal/config"
	"github.com/dgallion1/techspec/internal/generate"
	"github.com/dgallion1/techspec/internal/pipeline"
	"go.uber.org/automaxprocs/maxprocs"
)

// closableGenerator is a model client holding idle HTTP connections.
type closableGenerator interface {
	generate.Generator
	Close()
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	cfg, err := config.Load("")
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the model client.
	var client closableGenerator
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		client = generate.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMTimeout)
	default:
		client = generate.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMTimeout)
	}
	stats := generate.NewLLMStats(time.Hour)
	gen := generate.NewRetrier(client, stats, log)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Workers:      cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
		Worker: pipeline.WorkerConfig{
			OutputDir:       cfg.OutputDir,
			WriteSidecar:    cfg.WriteTextSidecar,
			MaxPromptTokens: cfg.MaxPromptTokens,
			PDFFallback:     cfg.PDFFallbackPdftotext,
		},
	}, gen, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLMTimeout*generate.MaxRetries + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		client.Close()
	}()

	log.Info("starting techspec",
		"port", cfg.Port,
		"provider", cfg.LLMProvider,
		"model", gen.Model(),
		"output_dir", cfg.OutputDir,
		"auth", cfg.APIKey != "",
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
