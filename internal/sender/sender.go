// Package sender pushes outbound messages into Google Chat, replying
// into the right thread for each conversation.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tjfontaine/gchat-bridge/internal/api/chat"
)

// chatAPI is the slice of the Chat client the sender consumes.
type chatAPI interface {
	CreateMessage(ctx context.Context, space string, req *chat.MessageRequest) (*chat.MessageResponse, error)
}

// SendRequest describes one outbound message.
type SendRequest struct {
	// SpaceID is the target space, with or without the "spaces/" prefix.
	SpaceID string

	// ThreadName is the full resolved thread resource name. When set it
	// takes priority over everything else.
	ThreadName string

	// ThreadKey groups the message into the session's thread. Ignored
	// when ThreadName is set.
	ThreadKey string

	// SenderLabel is prepended to the text as "*label:*" so operators
	// can tell customer, AI, and system messages apart. Empty sends the
	// text bare.
	SenderLabel string

	Text string
}

// SendResult reports where a message landed.
type SendResult struct {
	MessageName string
	ThreadName  string
	Space       string
	CreateTime  string
}

// Sender sends messages and caches thread resolutions. Like the cache
// it owns, a Sender is not safe for concurrent turns.
type Sender struct {
	api    chatAPI
	cache  *ThreadCache
	logger *slog.Logger
}

// New creates a sender. A nil cache gets a fresh private one.
func New(api chatAPI, cache *ThreadCache, logger *slog.Logger) *Sender {
	if cache == nil {
		cache = NewThreadCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{api: api, cache: cache, logger: logger}
}

// Send posts the message, choosing the thread to reply into by
// priority: explicit thread name, cached resolution, bare thread key
// (the service falls back to a new thread for unseen keys), then no
// thread at all. Failures are returned unretried; the caller decides.
func (s *Sender) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	space := normalizeSpace(req.SpaceID)
	if space == "spaces/" || space == "spaces" {
		return nil, fmt.Errorf("space id is required")
	}

	msg := &chat.MessageRequest{Text: formatText(req.SenderLabel, req.Text)}

	switch {
	case req.ThreadName != "":
		msg.Thread = &chat.ThreadRef{Name: req.ThreadName}
	case req.ThreadKey != "":
		if cached, ok := s.cache.Get(space, req.ThreadKey); ok {
			msg.Thread = &chat.ThreadRef{Name: cached}
		} else {
			msg.Thread = &chat.ThreadRef{ThreadKey: req.ThreadKey}
		}
	}

	resp, err := s.api.CreateMessage(ctx, space, msg)
	if err != nil {
		return nil, err
	}

	result := &SendResult{
		MessageName: resp.Name,
		Space:       space,
		CreateTime:  resp.CreateTime,
	}
	if resp.Thread != nil {
		result.ThreadName = resp.Thread.Name
		s.cache.Put(space, req.ThreadKey, resp.Thread.Name)
	}

	s.logger.Info("message sent",
		slog.String("space", space),
		slog.String("message", result.MessageName),
		slog.String("thread", result.ThreadName),
	)
	return result, nil
}

func normalizeSpace(spaceID string) string {
	spaceID = strings.TrimSpace(spaceID)
	if strings.HasPrefix(spaceID, "spaces/") {
		return spaceID
	}
	return "spaces/" + spaceID
}

func formatText(label, text string) string {
	if label == "" {
		return text
	}
	return fmt.Sprintf("*%s:*\n%s", label, text)
}
