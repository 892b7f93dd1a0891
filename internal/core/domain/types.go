// Package domain holds the canonical types shared by the bridge components.
package domain

import "time"

// Controller identifies which side currently owns response generation
// for a conversation thread.
type Controller string

const (
	// ControllerAI means the model pipeline answers the customer.
	ControllerAI Controller = "AI"

	// ControllerHuman means a support operator answers the customer.
	ControllerHuman Controller = "HUMAN"
)

// ControlState is the persisted ownership record for one thread key.
// The zero-value record (absent document) reads as AI control with no
// recorded human activity.
type ControlState struct {
	ThreadKey  string
	Controller Controller

	// LastHumanActivity is set only once a human has touched the
	// conversation; it is retained (not cleared) after reverting to AI
	// so the last touch remains auditable.
	LastHumanActivity *time.Time

	UpdatedAt time.Time
}

// ThreadKeyRecord is the persisted session-to-thread-key mapping.
// Once created for a session the thread key never changes.
type ThreadKeyRecord struct {
	ThreadKey string
	SessionID string
	CreatedAt time.Time
}

// InboundEvent is one decoded chat event pulled from the queue or
// received on the webhook. All fields are resolved once at the
// transport boundary; downstream code never re-probes raw payloads.
type InboundEvent struct {
	EventType   string
	Text        string
	MessageName string
	SenderName  string
	SenderEmail string
	SenderType  string
	ThreadName  string
	ThreadKey   string
	SpaceName   string
	CreateTime  string
}

// EventTypeMessage is the only event type the bridge acts on; every
// other type is acknowledged and discarded.
const EventTypeMessage = "MESSAGE"

// ChatMessage is the unit of text handed to and from the flow host.
type ChatMessage struct {
	Text       string
	Sender     string
	SenderName string
	SessionID  string
}

// SessionRef carries the two places a session id may come from: the
// message itself and the ambient flow invocation. Explicit always wins.
type SessionRef struct {
	Explicit string
	Ambient  string
}

// Resolve returns the effective session id, or "" when neither source
// supplies one.
func (r SessionRef) Resolve() string {
	if r.Explicit != "" {
		return r.Explicit
	}
	return r.Ambient
}

// Route is the router's verdict for one conversation turn.
type Route string

const (
	// RouteAI lets the model pipeline handle the turn.
	RouteAI Route = "AI"

	// RouteHuman forwards the turn to the human operator side.
	RouteHuman Route = "HUMAN"
)

// RouteDecision is the full outcome of one router evaluation.
// OperatorMessage is non-nil only when a fresh operator message should
// be shown to the customer.
type RouteDecision struct {
	Route           Route
	OperatorMessage *ChatMessage
	ThreadKey       string
}
