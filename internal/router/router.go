// Package router decides, per conversation turn, whether the AI
// pipeline or a human operator answers the customer. It ties the
// thread key store, the control state store, the queue reader, and the
// handoff detector into one state machine.
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/gchat-bridge/internal/control"
	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
	"github.com/tjfontaine/gchat-bridge/internal/handoff"
	"github.com/tjfontaine/gchat-bridge/internal/queue"
	"github.com/tjfontaine/gchat-bridge/internal/threadkey"
)

// Defaults for the per-turn operator check and the human inactivity
// window.
const (
	DefaultCheckBudget  = 3 * time.Second
	DefaultHumanTimeout = 5 * time.Minute
)

// Config tunes one router instance.
type Config struct {
	// CheckBudget bounds the quick per-turn poll for operator activity.
	CheckBudget time.Duration

	// HumanTimeout is the inactivity window after which control
	// auto-returns to AI.
	HumanTimeout time.Duration

	// BotEmail filters the bridge's own messages out of the queue.
	BotEmail string

	// ThreadFilter, when set, restricts the operator check to one thread.
	ThreadFilter string

	// KeyConfig shapes generated thread keys.
	KeyConfig threadkey.GeneratorConfig
}

func (c Config) withDefaults() Config {
	if c.CheckBudget <= 0 {
		c.CheckBudget = DefaultCheckBudget
	}
	if c.HumanTimeout <= 0 {
		c.HumanTimeout = DefaultHumanTimeout
	}
	if c.KeyConfig == (threadkey.GeneratorConfig{}) {
		c.KeyConfig = threadkey.DefaultGeneratorConfig()
	}
	return c
}

// Router evaluates one conversation turn at a time. It is not safe for
// concurrent turns on the same thread key; the flow host serializes
// invocations per process.
type Router struct {
	keys     *threadkey.Store
	control  *control.Store
	reader   *queue.Reader
	detector handoff.Detector
	cfg      Config
	logger   *slog.Logger
}

// New creates a router.
func New(keys *threadkey.Store, ctl *control.Store, reader *queue.Reader, detector handoff.Detector, cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		keys:     keys,
		control:  ctl,
		reader:   reader,
		detector: detector,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Route runs one turn of the ownership state machine for the customer
// message. Errors along the way degrade toward AI control rather than
// failing the turn: a customer is never blocked by an unreachable
// store or a slow queue.
func (r *Router) Route(ctx context.Context, customer domain.ChatMessage, session domain.SessionRef) domain.RouteDecision {
	sessionID := session.Resolve()
	if sessionID == "" {
		sessionID = customer.SessionID
	}
	if sessionID == "" {
		r.logger.Warn("no session id resolvable, routing to AI")
		return domain.RouteDecision{Route: domain.RouteAI}
	}

	threadKey := r.keys.GetOrCreate(ctx, sessionID, r.cfg.KeyConfig)

	state, err := r.control.Read(ctx, threadKey)
	if err != nil {
		// Fail open: an unknowable state is treated as AI control.
		r.logger.Warn("control state unreadable, assuming AI control",
			slog.String("thread_key", threadKey),
			slog.String("error", err.Error()),
		)
	}

	if state.Controller == domain.ControllerHuman && r.control.TimedOut(state, r.cfg.HumanTimeout) {
		r.logger.Info("human inactivity timeout, returning control to AI",
			slog.String("thread_key", threadKey),
		)
		r.writeState(ctx, threadKey, domain.ControllerAI)
		state.Controller = domain.ControllerAI
	}

	filter := queue.Filter{BotEmail: r.cfg.BotEmail, ThreadName: r.cfg.ThreadFilter}
	ev, err := r.reader.Poll(ctx, filter, r.cfg.CheckBudget)
	if err != nil {
		// Only cancellation reaches here; route the turn to whoever
		// held control and let the caller wind down.
		r.logger.Warn("operator check aborted", slog.String("error", err.Error()))
	}

	if ev != nil {
		return r.applyOperatorMessage(ctx, threadKey, state, ev)
	}

	if state.Controller == domain.ControllerHuman {
		// Human holds the thread but sent nothing this turn: forward
		// the customer message to the human side, do not invoke AI.
		return domain.RouteDecision{Route: domain.RouteHuman, ThreadKey: threadKey}
	}
	return domain.RouteDecision{Route: domain.RouteAI, ThreadKey: threadKey}
}

// applyOperatorMessage runs the transition table for a fresh operator
// message.
func (r *Router) applyOperatorMessage(ctx context.Context, threadKey string, state domain.ControlState, ev *domain.InboundEvent) domain.RouteDecision {
	text := ev.Text
	if isOperator, cleaned := r.detector.OperatorMessage(text); isOperator {
		text = cleaned
	}
	sender := ev.SenderName
	if sender == "" {
		sender = "Support"
	}

	if r.detector.IsHandoff(text) {
		// The handoff command is a control signal, not content; it is
		// consumed here and never shown to the customer.
		r.logger.Info("handoff keyword detected, returning control to AI",
			slog.String("thread_key", threadKey),
		)
		r.writeState(ctx, threadKey, domain.ControllerAI)
		return domain.RouteDecision{Route: domain.RouteAI, ThreadKey: threadKey}
	}

	if state.Controller != domain.ControllerHuman {
		r.logger.Info("human taking over conversation", slog.String("thread_key", threadKey))
	}
	r.writeState(ctx, threadKey, domain.ControllerHuman)

	return domain.RouteDecision{
		Route:     domain.RouteHuman,
		ThreadKey: threadKey,
		OperatorMessage: &domain.ChatMessage{
			Text:       text,
			Sender:     sender,
			SenderName: sender,
		},
	}
}

// writeState persists a transition, logging rather than failing on
// store errors.
func (r *Router) writeState(ctx context.Context, threadKey string, controller domain.Controller) {
	if err := r.control.Write(ctx, threadKey, controller); err != nil {
		r.logger.Warn("failed to persist control transition",
			slog.String("thread_key", threadKey),
			slog.String("controller", string(controller)),
			slog.String("error", err.Error()),
		)
	}
}
