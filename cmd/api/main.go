package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"reqspec-backend/internal/config"
	"reqspec-backend/internal/handlers"
	"reqspec-backend/internal/service/document"
	"reqspec-backend/internal/service/llm"
	"reqspec-backend/internal/service/requirement"
	"reqspec-backend/internal/storage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Resolve the persistence backend once at startup. The probe never
	// fails; at worst it lands on the embedded store.
	probe := storage.NewProbe(cfg.Database, logger)
	resolution := probe.Resolve(ctx)
	adapter := storage.NewAdapter(resolution, logger)

	provider := llm.NewOpenAIProvider(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout, logger)
	generator := document.NewGenerator(cfg.LLM, provider, logger)
	versions := document.NewVersionStore(adapter, logger)
	service := requirement.NewService(adapter, generator, versions, logger)

	handler := handlers.NewRequirementHandler(service, adapter, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("backend", resolution.Method.String()),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := adapter.Close(); err != nil {
		logger.Error("Storage shutdown error", zap.Error(err))
	}
	logger.Sync()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
