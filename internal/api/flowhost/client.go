// Package flowhost is an HTTP client for the flow-execution host's run
// API. The bridge treats the host as an opaque collaborator: post a
// chat input, read back the text the flow produced.
package flowhost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 120 * time.Second

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sets the x-api-key header sent on run requests. Leave
// unset for public flows.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// Client invokes flows on one flow host.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a flow host client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunInput carries one chat turn into a flow. SessionID keeps the
// flow's conversation memory continuous across turns; Tweaks surface
// message metadata to individual flow components.
type RunInput struct {
	Text      string
	SessionID string
	Tweaks    map[string]string
}

type runRequest struct {
	InputValue string            `json:"input_value"`
	OutputType string            `json:"output_type"`
	InputType  string            `json:"input_type"`
	SessionID  string            `json:"session_id,omitempty"`
	Tweaks     map[string]string `json:"tweaks,omitempty"`
}

type runResponse struct {
	Outputs []struct {
		Outputs []struct {
			Results struct {
				Message struct {
					Text string `json:"text"`
				} `json:"message"`
			} `json:"results"`
		} `json:"outputs"`
	} `json:"outputs"`
}

// Run executes the flow and returns the text of its first chat output,
// or "" when the flow produced none.
func (c *Client) Run(ctx context.Context, flowID string, input RunInput) (string, error) {
	body, err := json.Marshal(runRequest{
		InputValue: input.Text,
		OutputType: "chat",
		InputType:  "chat",
		SessionID:  input.SessionID,
		Tweaks:     input.Tweaks,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/run/%s", c.baseURL, flowID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("flow host request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("flow host error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result runResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(result.Outputs) > 0 && len(result.Outputs[0].Outputs) > 0 {
		return result.Outputs[0].Outputs[0].Results.Message.Text, nil
	}
	return "", nil
}
