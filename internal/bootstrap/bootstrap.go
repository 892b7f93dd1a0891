// Package bootstrap assembles the bridge's components from
// configuration. Both binaries and the embedding API build on it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/tjfontaine/gchat-bridge/internal/adapters/store/firestore"
	"github.com/tjfontaine/gchat-bridge/internal/adapters/store/memory"
	"github.com/tjfontaine/gchat-bridge/internal/adapters/store/sqlite"
	"github.com/tjfontaine/gchat-bridge/internal/api/chat"
	"github.com/tjfontaine/gchat-bridge/internal/api/flowhost"
	"github.com/tjfontaine/gchat-bridge/internal/api/pubsub"
	"github.com/tjfontaine/gchat-bridge/internal/config"
	"github.com/tjfontaine/gchat-bridge/internal/control"
	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
	"github.com/tjfontaine/gchat-bridge/internal/gauth"
	"github.com/tjfontaine/gchat-bridge/internal/handoff"
	"github.com/tjfontaine/gchat-bridge/internal/queue"
	"github.com/tjfontaine/gchat-bridge/internal/router"
	"github.com/tjfontaine/gchat-bridge/internal/sender"
	"github.com/tjfontaine/gchat-bridge/internal/threadkey"
)

// Bridge holds the assembled components. Fields that configuration
// leaves unconfigured are nil; callers check what they need.
type Bridge struct {
	Credentials *gauth.Credentials
	Docs        ports.DocumentStore
	Keys        *threadkey.Store
	Control     *control.Store

	// Subscriber and Reader are nil when no Pub/Sub subscription is
	// configured; Router depends on Reader and is nil with it.
	Subscriber ports.QueueSubscriber
	Reader     *queue.Reader
	Router     *router.Router

	Detector handoff.Detector
	Flow     *flowhost.Client

	// Sender is nil without credentials.
	Sender *sender.Sender

	// BotEmail is the resolved self-filter address.
	BotEmail string

	logger *slog.Logger
}

// New assembles a Bridge from cfg. ctx scopes credential exchange only.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{logger: logger}

	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	b.Credentials = creds

	var tokens oauth2.TokenSource
	if creds != nil {
		tokens, err = creds.TokenSource(ctx,
			gauth.ScopeChatBot, gauth.ScopePubSub, gauth.ScopeDatastore)
		if err != nil {
			return nil, fmt.Errorf("failed to build token source: %w", err)
		}
	}

	projectID := cfg.PubSub.ProjectID
	if projectID == "" && creds != nil {
		projectID = creds.ProjectID
	}

	docs, err := openDocumentStore(cfg, tokens, projectID)
	if err != nil {
		return nil, err
	}
	b.Docs = docs
	b.Keys = threadkey.NewStore(docs, cfg.Store.ThreadKeysCollection, logger)
	b.Control = control.NewStore(docs, cfg.Store.ControlStateCollection, logger)

	b.BotEmail = cfg.Chat.BotEmail
	if b.BotEmail == "" && creds != nil {
		b.BotEmail = creds.ClientEmail
	}

	b.Detector = handoff.NewDetector(
		handoff.ParseKeywords(cfg.Handoff.Keywords),
		cfg.Handoff.MentionPrefix,
	)

	b.Flow = flowhost.NewClient(cfg.FlowHost.URL, flowhost.WithAPIKey(cfg.FlowHost.APIKey))

	if cfg.PubSub.Subscription != "" {
		if tokens == nil {
			return nil, fmt.Errorf("pubsub subscription %q configured without credentials", cfg.PubSub.Subscription)
		}
		b.Subscriber = pubsub.NewClient(tokens,
			pubsub.SubscriptionPath(cfg.PubSub.ProjectID, cfg.PubSub.Subscription))
		b.Reader = queue.NewReader(b.Subscriber, logger)

		b.Router = router.New(b.Keys, b.Control, b.Reader, b.Detector, router.Config{
			CheckBudget:  time.Duration(cfg.Handoff.CheckTimeoutSeconds) * time.Second,
			HumanTimeout: time.Duration(cfg.Handoff.HumanTimeoutMinutes) * time.Minute,
			BotEmail:     b.BotEmail,
		}, logger)
	}

	if tokens != nil {
		b.Sender = sender.New(chat.NewClient(tokens), nil, logger)
	}

	return b, nil
}

// Close releases the document store and the queue subscription.
func (b *Bridge) Close() error {
	var first error
	if b.Subscriber != nil {
		if err := b.Subscriber.Close(); err != nil && first == nil {
			first = err
		}
	}
	if b.Docs != nil {
		if err := b.Docs.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// loadCredentials resolves service-account credentials: inline JSON,
// then the configured file, then GOOGLE_APPLICATION_CREDENTIALS. All
// absent is not an error; callers that need tokens find out from the
// assembled Bridge.
func loadCredentials(cfg *config.Config) (*gauth.Credentials, error) {
	if cfg.Google.CredentialsJSON != "" {
		return gauth.ParseCredentials([]byte(cfg.Google.CredentialsJSON))
	}
	if cfg.Google.CredentialsFile != "" {
		return gauth.LoadCredentialsFile(cfg.Google.CredentialsFile)
	}
	if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		return gauth.LoadCredentialsFile(path)
	}
	return nil, nil
}

func openDocumentStore(cfg *config.Config, tokens oauth2.TokenSource, projectID string) (ports.DocumentStore, error) {
	switch cfg.Store.Type {
	case "firestore":
		if tokens == nil {
			return nil, fmt.Errorf("store.type firestore requires credentials")
		}
		if projectID == "" {
			return nil, fmt.Errorf("store.type firestore requires a project id")
		}
		return firestore.New(tokens, projectID), nil
	case "sqlite":
		return sqlite.New(cfg.Store.SQLitePath)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store.type %q", cfg.Store.Type)
	}
}
