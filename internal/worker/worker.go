// Package worker is the always-on queue drain: it pulls inbound
// customer messages, hands each to the flow host, and optionally posts
// the flow's answer back into the originating chat thread.
//
// The worker is a single-consumer loop, not a concurrent pipeline. It
// runs until its context is cancelled by an external stop signal;
// runtime errors are logged and the loop continues.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tjfontaine/gchat-bridge/internal/api/flowhost"
	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
	"github.com/tjfontaine/gchat-bridge/internal/queue"
	"github.com/tjfontaine/gchat-bridge/internal/sender"
)

// Run modes.
const (
	ModeStreaming = "streaming"
	ModePolling   = "polling"
)

// DefaultPollBudget bounds each pull cycle in polling mode.
const DefaultPollBudget = 30 * time.Second

// FlowRunner is the slice of the flow host client the worker consumes.
type FlowRunner interface {
	Run(ctx context.Context, flowID string, input flowhost.RunInput) (string, error)
}

// ReplySender posts flow answers back to chat. Satisfied by
// *sender.Sender.
type ReplySender interface {
	Send(ctx context.Context, req sender.SendRequest) (*sender.SendResult, error)
}

// Config tunes one worker.
type Config struct {
	// Mode is ModeStreaming (drain with no budget) or ModePolling.
	Mode string

	// PollBudget bounds each cycle in polling mode.
	PollBudget time.Duration

	// BotEmail keeps the bridge from reacting to its own messages.
	BotEmail string

	FlowID string

	// SpaceID and SenderLabel configure reply sends. Replies are
	// disabled when SpaceID is empty or Replies is false.
	Replies     bool
	SpaceID     string
	SenderLabel string
}

// Worker drains one subscription.
type Worker struct {
	reader *queue.Reader
	flow   FlowRunner
	send   ReplySender
	cfg    Config
	logger *slog.Logger
}

// New creates a worker. send may be nil when replies are disabled.
func New(reader *queue.Reader, flow FlowRunner, send ReplySender, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollBudget <= 0 {
		cfg.PollBudget = DefaultPollBudget
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeStreaming
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{reader: reader, flow: flow, send: send, cfg: cfg, logger: logger}
}

// Run drains the queue until ctx is cancelled. It returns nil on
// cancellation; pending acknowledgments are flushed by the reader
// before each cycle completes.
func (w *Worker) Run(ctx context.Context) error {
	budget := time.Duration(0)
	if w.cfg.Mode == ModePolling {
		budget = w.cfg.PollBudget
	}

	w.logger.Info("worker started",
		slog.String("mode", w.cfg.Mode),
		slog.String("flow_id", w.cfg.FlowID),
	)

	filter := queue.Filter{BotEmail: w.cfg.BotEmail}

	for {
		ev, err := w.reader.Poll(ctx, filter, budget)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return nil
			}
			w.logger.Error("poll failed", slog.String("error", err.Error()))
			continue
		}
		if ev == nil {
			// Polling mode: an empty window, go around again.
			continue
		}
		w.process(ctx, ev)
	}
}

// process runs one inbound event through the flow host. Failures are
// logged, never fatal to the loop.
func (w *Worker) process(ctx context.Context, ev *domain.InboundEvent) {
	if strings.TrimSpace(ev.Text) == "" {
		w.logger.Debug("skipping empty message")
		return
	}

	w.logger.Info("processing message",
		slog.String("sender", ev.SenderName),
		slog.String("thread", ev.ThreadName),
	)

	// The thread key doubles as the flow session id so the flow's
	// conversation memory follows the chat thread.
	sessionID := ev.ThreadKey
	if sessionID == "" {
		sessionID = ev.ThreadName
	}

	answer, err := w.flow.Run(ctx, w.cfg.FlowID, flowhost.RunInput{
		Text:      ev.Text,
		SessionID: sessionID,
		Tweaks: map[string]string{
			"thread_name": ev.ThreadName,
			"sender_name": ev.SenderName,
			"space_name":  ev.SpaceName,
		},
	})
	if err != nil {
		w.logger.Error("flow host call failed", slog.String("error", err.Error()))
		return
	}
	if answer == "" {
		w.logger.Warn("flow produced no answer", slog.String("thread", ev.ThreadName))
		return
	}

	if !w.cfg.Replies || w.send == nil || w.cfg.SpaceID == "" {
		return
	}

	_, err = w.send.Send(ctx, sender.SendRequest{
		SpaceID:     w.cfg.SpaceID,
		ThreadName:  ev.ThreadName,
		ThreadKey:   ev.ThreadKey,
		SenderLabel: w.cfg.SenderLabel,
		Text:        answer,
	})
	if err != nil {
		w.logger.Error("reply send failed",
			slog.String("thread", ev.ThreadName),
			slog.String("error", err.Error()),
		)
	}
}
