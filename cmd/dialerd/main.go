package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/acme/autodialer/internal/api"
	"github.com/acme/autodialer/internal/app"
	"github.com/acme/autodialer/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())

	shutdownTracing, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App.Name, container.Config.App.Version)
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), container.Config.Telemetry.ShutdownTimeout)
		defer shutdownCancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	if err := container.EnsureInfrastructure(ctx); err != nil {
		log.Fatalf("failed to prepare infrastructure: %v", err)
	}

	workers, err := container.Workers()
	if err != nil {
		log.Fatalf("failed to initialize workers: %v", err)
	}
	for _, w := range workers {
		go func(w app.Worker) {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				container.Logger.Error("worker stopped", zap.Error(err))
			}
		}(w)
	}

	handlerSet, err := container.HandlerSet()
	if err != nil {
		log.Fatalf("failed to initialize handlers: %v", err)
	}

	server := api.NewServer(container.Config.HTTP, handlerSet)
	container.Logger.Info("dialer daemon listening", zap.Int("port", container.Config.HTTP.Port))
	if err := server.Start(ctx); err != nil {
		log.Fatalf("server terminated: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
