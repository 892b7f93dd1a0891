package threadkey

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
)

// DefaultCollection is where thread key records live in the document store.
const DefaultCollection = "thread_keys"

// Document field names for thread key records.
const (
	fieldThreadKey = "thread_key"
	fieldSessionID = "session_id"
	fieldCreatedAt = "created_at"
)

// Store persists the session-to-thread-key mapping.
type Store struct {
	docs       ports.DocumentStore
	collection string
	logger     *slog.Logger
}

// NewStore creates a thread key store over docs. An empty collection
// selects DefaultCollection.
func NewStore(docs ports.DocumentStore, collection string, logger *slog.Logger) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{docs: docs, collection: collection, logger: logger}
}

// GetOrCreate returns the thread key for sessionID, generating and
// persisting one on first sight. The call never fails: with no session
// id, or when the store is unreachable, it degrades to a fresh
// non-persisted key and logs that thread continuity is best-effort for
// this turn.
//
// The read and the write are two separate store calls; two concurrent
// first messages for a session can race and the last write wins.
func (s *Store) GetOrCreate(ctx context.Context, sessionID string, cfg GeneratorConfig) string {
	if sessionID == "" {
		s.logger.Warn("no session id, generating thread key without persistence")
		return cfg.Generate()
	}

	fields, found, err := s.docs.Get(ctx, s.collection, sessionID)
	if err != nil {
		s.logger.Warn("thread key lookup failed, generating without persistence",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return cfg.Generate()
	}
	if found {
		if existing := fields[fieldThreadKey]; existing != "" {
			return existing
		}
	}

	key := cfg.Generate()
	record := map[string]string{
		fieldThreadKey: key,
		fieldSessionID: sessionID,
		fieldCreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.docs.Set(ctx, s.collection, sessionID, record, false); err != nil {
		s.logger.Warn("failed to persist thread key",
			slog.String("session_id", sessionID),
			slog.String("thread_key", key),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("generated thread key",
		slog.String("session_id", sessionID),
		slog.String("thread_key", key),
	)
	return key
}

// Lookup returns the stored thread key for sessionID without creating
// one, or "" when none exists or the store is unreachable.
func (s *Store) Lookup(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	fields, found, err := s.docs.Get(ctx, s.collection, sessionID)
	if err != nil {
		s.logger.Warn("thread key lookup failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	if !found {
		return ""
	}
	return fields[fieldThreadKey]
}
