// Package queue reads inbound chat events from the at-least-once
// message queue. Every message the reader examines is acknowledged,
// whether or not it passes the filters: the filter decides what is
// returned, never what stays queued.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
)

const (
	// pullDeadline bounds each individual pull call.
	pullDeadline = 3 * time.Second

	// errorBackoff is the pause after a non-deadline pull failure.
	errorBackoff = 2 * time.Second

	// ackTimeout bounds the acknowledge flush, which is decoupled from
	// the caller's budget so examined messages never redeliver.
	ackTimeout = 5 * time.Second

	// maxMessages is the batch size per pull.
	maxMessages = 10
)

// Filter selects which decoded events Poll may return.
type Filter struct {
	// BotEmail rejects events whose sender email contains this value.
	BotEmail string

	// ThreadName, when set, requires an exact thread name match.
	ThreadName string
}

// Accept reports whether ev passes the filter. Only MESSAGE events ever
// qualify.
func (f Filter) Accept(ev *domain.InboundEvent) bool {
	if ev.EventType != domain.EventTypeMessage {
		return false
	}
	if f.BotEmail != "" && strings.Contains(ev.SenderEmail, f.BotEmail) {
		return false
	}
	if f.ThreadName != "" && ev.ThreadName != f.ThreadName {
		return false
	}
	return true
}

// Reader polls one subscription for qualifying events.
type Reader struct {
	sub    ports.QueueSubscriber
	logger *slog.Logger
}

// NewReader creates a reader over sub.
func NewReader(sub ports.QueueSubscriber, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{sub: sub, logger: logger}
}

// Poll blocks until a qualifying event arrives or budget elapses, and
// returns (nil, nil) on an exhausted budget. A budget of 0 waits until
// the context is cancelled; cancellation returns the context error so
// long-running callers can distinguish shutdown from an empty queue.
//
// Transient pull failures are retried inside the budget and never
// surface to the caller. Malformed payloads are acknowledged and
// dropped without redelivery.
func (r *Reader) Poll(ctx context.Context, filter Filter, budget time.Duration) (*domain.InboundEvent, error) {
	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, nil
		}

		pullCtx, cancel := context.WithTimeout(ctx, r.pullWindow(deadline))
		msgs, err := r.sub.Pull(pullCtx, maxMessages)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// An empty window, not a failure.
				continue
			}
			r.logger.Warn("pull error, backing off", slog.String("error", err.Error()))
			r.sleep(ctx, deadline, errorBackoff)
			continue
		}

		if ev := r.examine(ctx, msgs, filter); ev != nil {
			return ev, nil
		}
	}
}

// examine decodes and acknowledges every message in the batch and
// returns the first event that passes the filter.
func (r *Reader) examine(ctx context.Context, msgs []ports.QueueMessage, filter Filter) *domain.InboundEvent {
	if len(msgs) == 0 {
		return nil
	}

	ackIDs := make([]string, 0, len(msgs))
	var match *domain.InboundEvent

	for _, msg := range msgs {
		ackIDs = append(ackIDs, msg.AckID)

		ev, err := DecodeEvent(msg.Data)
		if err != nil {
			r.logger.Warn("dropping malformed queue payload", slog.String("error", err.Error()))
			continue
		}
		if match == nil && filter.Accept(ev) {
			match = ev
		}
	}

	// Flush acks even when the caller's context is on its way out;
	// an examined message must never redeliver.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := r.sub.Ack(ackCtx, ackIDs); err != nil {
		r.logger.Warn("failed to acknowledge messages",
			slog.Int("count", len(ackIDs)),
			slog.String("error", err.Error()),
		)
	}

	if match != nil {
		r.logger.Info("inbound event accepted",
			slog.String("sender", match.SenderName),
			slog.String("thread", match.ThreadName),
		)
	}
	return match
}

func (r *Reader) pullWindow(deadline time.Time) time.Duration {
	window := pullDeadline
	if !deadline.IsZero() {
		if remaining := time.Until(deadline); remaining < window {
			window = remaining
		}
	}
	if window <= 0 {
		window = time.Millisecond
	}
	return window
}

func (r *Reader) sleep(ctx context.Context, deadline time.Time, d time.Duration) {
	if !deadline.IsZero() {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
