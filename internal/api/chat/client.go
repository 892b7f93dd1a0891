// Package chat is a minimal HTTP client for the Google Chat REST API,
// covering the single message-create call the bridge needs.
package chat

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

	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
)

const defaultBaseURL = "https://chat.googleapis.com"

// replyOption asks the API to reply into the referenced thread, falling
// back to creating a new thread when the reference is unknown.
const replyOption = "REPLY_MESSAGE_FALLBACK_TO_NEW_THREAD"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is an HTTP client for the Chat API.
type Client struct {
	tokens     oauth2.TokenSource
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Chat API client authenticating with tokens.
func NewClient(tokens oauth2.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		tokens:     tokens,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMessage posts a message into space. The space must already be
// normalized to the "spaces/..." resource form. Failures are returned
// to the caller unretried.
func (c *Client) CreateMessage(ctx context.Context, space string, req *MessageRequest) (*MessageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/%s/messages", c.baseURL, space)
	if req.Thread != nil {
		endpoint += "?messageReplyOption=" + url.QueryEscape(replyOption)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.setHeaders(httpReq); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewError(domain.ErrorTypeSend, "chat.CreateMessage", "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, domain.NewError(domain.ErrorTypeSend, "chat.CreateMessage",
				fmt.Sprintf("API error %s (status %d): %s", apiErr.Error.Status, resp.StatusCode, apiErr.Error.Message), nil)
		}
		return nil, domain.NewError(domain.ErrorTypeSend, "chat.CreateMessage",
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(respBody)), nil)
	}

	var result MessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

func (c *Client) setHeaders(req *http.Request) error {
	tok, err := c.tokens.Token()
	if err != nil {
		return domain.NewError(domain.ErrorTypeConfig, "chat.setHeaders", "failed to obtain access token", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")
	return nil
}
