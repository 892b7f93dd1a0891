// Package config loads bridge configuration from an optional YAML file
// and CHATBRIDGE_-prefixed environment variables, env winning.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Google   GoogleConfig   `koanf:"google"`
	PubSub   PubSubConfig   `koanf:"pubsub"`
	Chat     ChatConfig     `koanf:"chat"`
	FlowHost FlowHostConfig `koanf:"flowhost"`
	Store    StoreConfig    `koanf:"store"`
	Handoff  HandoffConfig  `koanf:"handoff"`
	Worker   WorkerConfig   `koanf:"worker"`
	Webhook  WebhookConfig  `koanf:"webhook"`
}

// GoogleConfig locates the service-account credentials. Inline JSON
// wins over the file path when both are set.
type GoogleConfig struct {
	CredentialsFile string `koanf:"credentials_file"`
	CredentialsJSON string `koanf:"credentials_json"`
}

type PubSubConfig struct {
	ProjectID    string `koanf:"project_id"`
	Subscription string `koanf:"subscription"`
}

type ChatConfig struct {
	SpaceID string `koanf:"space_id"`

	// BotEmail filters the bridge's own messages out of inbound pulls.
	// Defaults to the service account's client_email when empty.
	BotEmail string `koanf:"bot_email"`

	SenderLabel string `koanf:"sender_label"`
}

type FlowHostConfig struct {
	URL    string `koanf:"url"`
	FlowID string `koanf:"flow_id"`
	APIKey string `koanf:"api_key"`
}

// StoreConfig selects the document store backend: firestore, sqlite, or
// memory.
type StoreConfig struct {
	Type                   string `koanf:"type"`
	SQLitePath             string `koanf:"sqlite_path"`
	ThreadKeysCollection   string `koanf:"thread_keys_collection"`
	ControlStateCollection string `koanf:"control_state_collection"`
}

type HandoffConfig struct {
	// Keywords is a comma-separated list of hand-back commands.
	Keywords string `koanf:"keywords"`

	MentionPrefix string `koanf:"mention_prefix"`

	HumanTimeoutMinutes int `koanf:"human_timeout_minutes"`
	CheckTimeoutSeconds int `koanf:"check_timeout_seconds"`
}

// WorkerConfig tunes the standalone drain worker.
type WorkerConfig struct {
	// Mode is "streaming" (budget-free drain) or "polling" (repeated
	// bounded pulls).
	Mode string `koanf:"mode"`

	PollSeconds int `koanf:"poll_seconds"`

	// Reply sends the flow's answer back into the chat thread.
	Reply bool `koanf:"reply"`
}

type WebhookConfig struct {
	Port int `koanf:"port"`
}

// Load reads configuration from path (skipped when empty or missing)
// and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("CHATBRIDGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CHATBRIDGE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"flowhost.url":                   "http://localhost:7860",
		"store.type":                     "firestore",
		"store.sqlite_path":              "./data/bridge.db",
		"store.thread_keys_collection":   "thread_keys",
		"store.control_state_collection": "conversation_control",
		"handoff.keywords":               "@ai, /handoff, /ai",
		"handoff.human_timeout_minutes":  5,
		"handoff.check_timeout_seconds":  3,
		"worker.mode":                    "streaming",
		"worker.poll_seconds":            30,
		"webhook.port":                   8080,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

// ValidateWorker checks the identifiers the drain worker cannot start
// without. Failing here is the only way the worker exits besides an
// external stop signal.
func (c *Config) ValidateWorker() error {
	var missing []string
	if c.PubSub.ProjectID == "" {
		missing = append(missing, "pubsub.project_id")
	}
	if c.PubSub.Subscription == "" {
		missing = append(missing, "pubsub.subscription")
	}
	if c.FlowHost.FlowID == "" {
		missing = append(missing, "flowhost.flow_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if m := c.Worker.Mode; m != "streaming" && m != "polling" {
		return fmt.Errorf("invalid worker.mode %q (want streaming or polling)", m)
	}
	return nil
}

// ValidateWebhook checks what the webhook receiver needs at startup.
func (c *Config) ValidateWebhook() error {
	if c.FlowHost.FlowID == "" {
		return fmt.Errorf("missing required configuration: flowhost.flow_id")
	}
	if c.Webhook.Port <= 0 {
		return fmt.Errorf("invalid webhook.port %d", c.Webhook.Port)
	}
	return nil
}
