// Package control persists which side of the conversation — AI or a
// human operator — currently owns response generation for each thread.
package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
)

// DefaultCollection is where control state records live in the document store.
const DefaultCollection = "conversation_control"

// Document field names for control state records.
const (
	fieldController   = "controller"
	fieldThreadKey    = "thread_key"
	fieldUpdatedAt    = "updated_at"
	fieldLastActivity = "last_human_activity"
)

// Store persists per-thread control state.
type Store struct {
	docs       ports.DocumentStore
	collection string
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates a control state store over docs. An empty collection
// selects DefaultCollection.
func NewStore(docs ports.DocumentStore, collection string, logger *slog.Logger) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{docs: docs, collection: collection, logger: logger, now: time.Now}
}

// Read returns the control state for threadKey. A thread with no record
// is under AI control with no recorded human activity. Store failures
// surface as errors; callers decide how to degrade.
func (s *Store) Read(ctx context.Context, threadKey string) (domain.ControlState, error) {
	state := domain.ControlState{
		ThreadKey:  threadKey,
		Controller: domain.ControllerAI,
	}

	fields, found, err := s.docs.Get(ctx, s.collection, threadKey)
	if err != nil {
		return state, domain.NewError(domain.ErrorTypeStore, "control.Read", "failed to read control state", err)
	}
	if !found {
		return state, nil
	}

	if c := fields[fieldController]; c == string(domain.ControllerHuman) {
		state.Controller = domain.ControllerHuman
	}
	// Malformed timestamps are dropped rather than failing the read;
	// a nil LastHumanActivity never trips the timeout rule.
	if raw := fields[fieldLastActivity]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			state.LastHumanActivity = &t
		} else {
			s.logger.Warn("unparseable last_human_activity, ignoring",
				slog.String("thread_key", threadKey),
				slog.String("value", raw),
			)
		}
	}
	if raw := fields[fieldUpdatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			state.UpdatedAt = t
		}
	}
	return state, nil
}

// Write records a controller change for threadKey. Writing HUMAN stamps
// last_human_activity with the current time; writing AI leaves the
// previous stamp in place so the last human touch stays auditable.
func (s *Store) Write(ctx context.Context, threadKey string, controller domain.Controller) error {
	now := s.now().UTC().Format(time.RFC3339)
	fields := map[string]string{
		fieldController: string(controller),
		fieldThreadKey:  threadKey,
		fieldUpdatedAt:  now,
	}
	if controller == domain.ControllerHuman {
		fields[fieldLastActivity] = now
	}

	if err := s.docs.Set(ctx, s.collection, threadKey, fields, true); err != nil {
		return domain.NewError(domain.ErrorTypeStore, "control.Write", "failed to write control state", err)
	}

	s.logger.Info("control state updated",
		slog.String("thread_key", threadKey),
		slog.String("controller", string(controller)),
	)
	return nil
}

// TimedOut reports whether a human controller has been inactive longer
// than timeout. Missing activity stamps read as "not timed out": when
// in doubt the conversation stays with the human rather than being
// silently pulled back.
func (s *Store) TimedOut(state domain.ControlState, timeout time.Duration) bool {
	if state.Controller != domain.ControllerHuman {
		return false
	}
	if state.LastHumanActivity == nil {
		return false
	}
	return s.now().Sub(*state.LastHumanActivity) > timeout
}
