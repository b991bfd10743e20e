package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/polyglot-query-gateway/internal/config"
	"github.com/tjfontaine/polyglot-query-gateway/internal/runtime"
	"github.com/tjfontaine/polyglot-query-gateway/internal/telemetry"
)

const defaultConfigPath = "config.yaml"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := os.Getenv("QUERY_GATEWAY_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: runtime.ParseLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(telemetry.Options{
		ServiceName: cfg.Tracing.ServiceName,
		Enabled:     cfg.Tracing.Enabled,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	opts := []runtime.Option{runtime.WithLogger(logger)}
	if _, err := os.Stat(configPath); err == nil {
		opts = append(opts, runtime.WithConfigWatch(configPath))
	}

	gw, err := runtime.New(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gw.Start(ctx); err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
