// Package gauth parses service-account credentials and mints OAuth2
// token sources for the Google APIs the bridge talks to.
package gauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
)

// OAuth scopes used by the bridge.
const (
	ScopeChatBot   = "https://www.googleapis.com/auth/chat.bot"
	ScopePubSub    = "https://www.googleapis.com/auth/pubsub"
	ScopeDatastore = "https://www.googleapis.com/auth/datastore"
)

// Credentials is a parsed service-account key. The raw JSON is retained
// for the JWT config, which needs the private key material.
type Credentials struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`

	raw []byte
}

// ParseCredentials decodes a service-account JSON blob. A malformed
// blob is fatal for everything downstream, so it surfaces as an error
// rather than degrading.
func ParseCredentials(raw []byte) (*Credentials, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, domain.NewError(domain.ErrorTypeConfig, "gauth.ParseCredentials", "service account JSON is empty", nil)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(trimmed), &creds); err != nil {
		return nil, domain.NewError(domain.ErrorTypeDecode, "gauth.ParseCredentials", "invalid service account JSON", err)
	}
	if creds.ClientEmail == "" {
		return nil, domain.NewError(domain.ErrorTypeConfig, "gauth.ParseCredentials", "service account JSON missing client_email", nil)
	}

	creds.raw = []byte(trimmed)
	return &creds, nil
}

// LoadCredentialsFile reads and parses a service-account key file.
func LoadCredentialsFile(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewError(domain.ErrorTypeConfig, "gauth.LoadCredentialsFile", fmt.Sprintf("read %s", path), err)
	}
	return ParseCredentials(raw)
}

// TokenSource returns an OAuth2 token source for the given scopes.
// The source refreshes tokens on demand; callers hold it for the
// process lifetime and never store raw tokens.
func (c *Credentials) TokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	cfg, err := google.JWTConfigFromJSON(c.raw, scopes...)
	if err != nil {
		return nil, domain.NewError(domain.ErrorTypeConfig, "gauth.TokenSource", "service account JSON not usable for JWT auth", err)
	}
	return cfg.TokenSource(ctx), nil
}
