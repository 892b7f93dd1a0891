package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/gchat-bridge/internal/bootstrap"
	"github.com/tjfontaine/gchat-bridge/internal/config"
	"github.com/tjfontaine/gchat-bridge/internal/server"
	"github.com/tjfontaine/gchat-bridge/internal/telemetry"
	"github.com/tjfontaine/gchat-bridge/internal/webhook"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CHATBRIDGE_CONFIG"), "path to YAML config file")
	flag.Parse()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("gchat-bridge-hook", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWebhook(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to assemble bridge: %v", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("close error", slog.String("error", err.Error()))
		}
	}()

	events, err := webhook.NewHandler(b.Flow, b.Detector, webhook.Config{
		FlowID:   cfg.FlowHost.FlowID,
		BotEmail: b.BotEmail,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create webhook handler: %v", err)
	}

	srv := server.New(cfg.Webhook.Port, logger)
	srv.Router.Post("/v1/events", events.HandleEvent)
	srv.Router.Get("/healthz", events.HandleHealth)

	// Routing and sends are only served when the queue and credentials
	// are configured; a bare webhook deployment still takes events.
	if b.Router != nil && b.Sender != nil {
		routes := webhook.NewRouteHandler(b.Router, b.Sender,
			cfg.Chat.SpaceID, cfg.Chat.SenderLabel, logger)
		srv.Router.Post("/v1/route", routes.HandleRoute)
		srv.Router.Post("/v1/send", routes.HandleSend)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
