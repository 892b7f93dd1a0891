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
	"github.com/tjfontaine/gchat-bridge/internal/telemetry"
	"github.com/tjfontaine/gchat-bridge/internal/worker"
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
	shutdown, err := telemetry.InitTracer("gchat-bridge-worker", logger)
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
	if err := cfg.ValidateWorker(); err != nil {
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

	if b.Reader == nil {
		log.Fatalf("Worker requires a Pub/Sub subscription")
	}

	var replies worker.ReplySender
	if cfg.Worker.Reply && cfg.Chat.SpaceID != "" {
		if b.Sender == nil {
			log.Fatalf("worker.reply requires credentials")
		}
		replies = b.Sender
	}

	w := worker.New(b.Reader, b.Flow, replies, worker.Config{
		Mode:        cfg.Worker.Mode,
		PollBudget:  time.Duration(cfg.Worker.PollSeconds) * time.Second,
		BotEmail:    b.BotEmail,
		FlowID:      cfg.FlowHost.FlowID,
		Replies:     replies != nil,
		SpaceID:     cfg.Chat.SpaceID,
		SenderLabel: cfg.Chat.SenderLabel,
	}, logger)

	logger.Info("worker started",
		slog.String("mode", cfg.Worker.Mode),
		slog.String("subscription", cfg.PubSub.Subscription),
		slog.String("flow", cfg.FlowHost.FlowID),
		slog.Bool("replies", replies != nil),
	)

	if err := w.Run(ctx); err != nil {
		logger.Error("worker stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("worker shutdown complete")
}
