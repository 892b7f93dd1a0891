// Package webhook receives Google Chat events pushed over HTTP and
// forwards operator and customer messages to the flow host. It is the
// push-delivery counterpart of the queue reader: the same events, the
// same filtering rules, without a subscription in between.
package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tjfontaine/gchat-bridge/internal/api/flowhost"
	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
	"github.com/tjfontaine/gchat-bridge/internal/handoff"
	"github.com/tjfontaine/gchat-bridge/internal/queue"
	"github.com/tjfontaine/gchat-bridge/internal/worker"
)

// dedupeSize bounds the redelivery window. Chat retries webhook
// deliveries on slow responses, so recently seen message names are
// dropped.
const dedupeSize = 1024

// Config tunes the webhook handler.
type Config struct {
	FlowID string

	// BotEmail keeps the bridge from reacting to its own messages.
	BotEmail string
}

// Handler processes Chat webhook deliveries.
type Handler struct {
	flow     worker.FlowRunner
	detector handoff.Detector
	cfg      Config
	seen     *lru.Cache[string, struct{}]
	logger   *slog.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(flow worker.FlowRunner, detector handoff.Detector, cfg Config, logger *slog.Logger) (*Handler, error) {
	seen, err := lru.New[string, struct{}](dedupeSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{flow: flow, detector: detector, cfg: cfg, seen: seen, logger: logger}, nil
}

// HandleEvent accepts one Chat event. Chat treats any non-2xx as a
// delivery failure and retries, so every decodable-or-not payload is
// answered 200; only transport-level read errors get a 4xx.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	ev, err := queue.DecodeEvent(body)
	if err != nil {
		h.logger.Warn("dropping malformed webhook payload", slog.String("error", err.Error()))
		h.respond(w)
		return
	}

	if !h.accept(ev) {
		h.respond(w)
		return
	}

	h.forward(r, ev)
	h.respond(w)
}

func (h *Handler) accept(ev *domain.InboundEvent) bool {
	if ev.EventType != domain.EventTypeMessage {
		h.logger.Debug("skipping event", slog.String("type", ev.EventType))
		return false
	}
	if h.cfg.BotEmail != "" && strings.Contains(ev.SenderEmail, h.cfg.BotEmail) {
		return false
	}
	if strings.TrimSpace(ev.Text) == "" {
		return false
	}
	if ev.MessageName != "" {
		if _, dup, _ := h.seen.PeekOrAdd(ev.MessageName, struct{}{}); dup {
			h.logger.Debug("skipping redelivered event", slog.String("message", ev.MessageName))
			return false
		}
	}
	return true
}

// forward hands the event to the flow host. Operator-prefixed messages
// are stripped of the mention and tagged so the flow skips its model
// stage.
func (h *Handler) forward(r *http.Request, ev *domain.InboundEvent) {
	text := ev.Text
	senderRole := "User"
	if isOperator, cleaned := h.detector.OperatorMessage(text); isOperator {
		text = cleaned
		senderRole = "Operator"
	}

	sessionID := ev.ThreadKey
	if sessionID == "" {
		sessionID = ev.ThreadName
	}

	answer, err := h.flow.Run(r.Context(), h.cfg.FlowID, flowhost.RunInput{
		Text:      text,
		SessionID: sessionID,
		Tweaks: map[string]string{
			"thread_name": ev.ThreadName,
			"sender_name": ev.SenderName,
			"sender":      senderRole,
			"space_name":  ev.SpaceName,
		},
	})
	if err != nil {
		h.logger.Error("flow host call failed",
			slog.String("thread", ev.ThreadName),
			slog.String("error", err.Error()),
		)
		return
	}
	if answer == "" {
		h.logger.Debug("flow produced no answer", slog.String("thread", ev.ThreadName))
	}
}

func (h *Handler) respond(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{})
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
