// Package firestore implements ports.DocumentStore against the Cloud
// Firestore REST API. Only the narrow get/set-by-id access pattern the
// bridge requires is covered; querying and deletion stay external.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
)

const defaultBaseURL = "https://firestore.googleapis.com"

// StoreOption configures the store.
type StoreOption func(*Store)

// WithBaseURL sets a custom base URL (emulator endpoints).
func WithBaseURL(baseURL string) StoreOption {
	return func(s *Store) {
		s.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) StoreOption {
	return func(s *Store) {
		s.httpClient = httpClient
	}
}

// Store talks to one project's default Firestore database.
type Store struct {
	tokens     oauth2.TokenSource
	projectID  string
	baseURL    string
	httpClient *http.Client
}

var _ ports.DocumentStore = (*Store)(nil)

// New creates a Firestore-backed document store.
func New(tokens oauth2.TokenSource, projectID string, opts ...StoreOption) *Store {
	s := &Store{
		tokens:     tokens,
		projectID:  projectID,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// document is the REST wire shape. The bridge's records hold only
// string fields; other value kinds are ignored on read.
type document struct {
	Fields map[string]fieldValue `json:"fields,omitempty"`
}

type fieldValue struct {
	StringValue    *string `json:"stringValue,omitempty"`
	TimestampValue *string `json:"timestampValue,omitempty"`
	NullValue      *string `json:"nullValue,omitempty"`
}

// Get fetches collection/id. A 404 is (nil, false, nil).
func (s *Store) Get(ctx context.Context, collection, id string) (map[string]string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.docURL(collection, id), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	if err := s.authorize(req); err != nil {
		return nil, false, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("firestore get failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("firestore get error (status %d): %s", resp.StatusCode, string(body))
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	fields := make(map[string]string, len(doc.Fields))
	for k, v := range doc.Fields {
		switch {
		case v.StringValue != nil:
			fields[k] = *v.StringValue
		case v.TimestampValue != nil:
			fields[k] = *v.TimestampValue
		}
	}
	return fields, true, nil
}

// Set writes fields to collection/id. With merge true only the given
// fields are touched; otherwise the document is replaced.
func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]string, merge bool) error {
	doc := document{Fields: make(map[string]fieldValue, len(fields))}
	for k, v := range fields {
		val := v
		doc.Fields[k] = fieldValue{StringValue: &val}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	endpoint := s.docURL(collection, id)
	if merge {
		q := url.Values{}
		for k := range fields {
			q.Add("updateMask.fieldPaths", k)
		}
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if err := s.authorize(req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("firestore set failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("firestore set error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Close is a no-op; the store holds no persistent connection state.
func (s *Store) Close() error {
	return nil
}

func (s *Store) docURL(collection, id string) string {
	return fmt.Sprintf("%s/v1/projects/%s/databases/(default)/documents/%s/%s",
		s.baseURL, s.projectID, url.PathEscape(collection), url.PathEscape(id))
}

func (s *Store) authorize(req *http.Request) error {
	tok, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}
