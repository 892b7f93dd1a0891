package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
	"github.com/tjfontaine/gchat-bridge/internal/router"
	"github.com/tjfontaine/gchat-bridge/internal/sender"
)

// RouteHandler serves routing decisions and outbound sends to the flow
// host's bridge components over HTTP.
type RouteHandler struct {
	router *router.Router
	snd    *sender.Sender

	// defaultSpace and defaultLabel fill in send requests that omit
	// them, so flow components only carry the text.
	defaultSpace string
	defaultLabel string

	logger *slog.Logger
}

// NewRouteHandler creates a RouteHandler.
func NewRouteHandler(rt *router.Router, snd *sender.Sender, defaultSpace, defaultLabel string, logger *slog.Logger) *RouteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteHandler{
		router:       rt,
		snd:          snd,
		defaultSpace: defaultSpace,
		defaultLabel: defaultLabel,
		logger:       logger,
	}
}

// RouteRequest is one conversation turn to evaluate.
type RouteRequest struct {
	Text       string `json:"text"`
	Sender     string `json:"sender,omitempty"`
	SenderName string `json:"sender_name,omitempty"`

	// SessionID is the explicit session id from the message;
	// AmbientSessionID is the flow invocation's own session. Explicit
	// wins.
	SessionID        string `json:"session_id,omitempty"`
	AmbientSessionID string `json:"ambient_session_id,omitempty"`
}

// RouteResponse is the router's verdict.
type RouteResponse struct {
	Route           string       `json:"route"`
	ThreadKey       string       `json:"thread_key,omitempty"`
	OperatorMessage *chatMessage `json:"operator_message,omitempty"`
}

type chatMessage struct {
	Text       string `json:"text"`
	Sender     string `json:"sender,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
}

// HandleRoute evaluates one turn of the ownership state machine.
func (h *RouteHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	decision := h.router.Route(r.Context(),
		domain.ChatMessage{
			Text:       req.Text,
			Sender:     req.Sender,
			SenderName: req.SenderName,
			SessionID:  req.SessionID,
		},
		domain.SessionRef{Explicit: req.SessionID, Ambient: req.AmbientSessionID},
	)

	resp := RouteResponse{
		Route:     string(decision.Route),
		ThreadKey: decision.ThreadKey,
	}
	if m := decision.OperatorMessage; m != nil {
		resp.OperatorMessage = &chatMessage{Text: m.Text, Sender: m.Sender, SenderName: m.SenderName}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// SendRequest is one outbound message to post into a chat thread.
type SendRequest struct {
	SpaceID     string `json:"space_id,omitempty"`
	ThreadName  string `json:"thread_name,omitempty"`
	ThreadKey   string `json:"thread_key,omitempty"`
	SenderLabel string `json:"sender_label,omitempty"`
	Text        string `json:"text"`
}

// SendResponse reports where the message landed.
type SendResponse struct {
	MessageName string `json:"message_name"`
	ThreadName  string `json:"thread_name,omitempty"`
	Space       string `json:"space"`
	CreateTime  string `json:"create_time,omitempty"`
}

// HandleSend posts a message. Send failures surface as 502 so the flow
// host can retry or alert; they are never retried here.
func (h *RouteHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.SpaceID == "" {
		req.SpaceID = h.defaultSpace
	}
	if req.SenderLabel == "" {
		req.SenderLabel = h.defaultLabel
	}

	result, err := h.snd.Send(r.Context(), sender.SendRequest{
		SpaceID:     req.SpaceID,
		ThreadName:  req.ThreadName,
		ThreadKey:   req.ThreadKey,
		SenderLabel: req.SenderLabel,
		Text:        req.Text,
	})
	if err != nil {
		h.logger.Error("send failed", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SendResponse{
		MessageName: result.MessageName,
		ThreadName:  result.ThreadName,
		Space:       result.Space,
		CreateTime:  result.CreateTime,
	})
}
