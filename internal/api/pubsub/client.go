// Package pubsub is a minimal HTTP client for the Cloud Pub/Sub REST
// API, covering synchronous pull and acknowledge.
package pubsub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
)

const defaultBaseURL = "https://pubsub.googleapis.com"

// SubscriptionPath builds the fully qualified subscription resource name.
func SubscriptionPath(projectID, subscription string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscription)
}

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

// Client pulls from one Pub/Sub subscription. It implements
// ports.QueueSubscriber.
type Client struct {
	tokens       oauth2.TokenSource
	subscription string
	baseURL      string
	httpClient   *http.Client
}

var _ ports.QueueSubscriber = (*Client)(nil)

// NewClient creates a subscriber client bound to one subscription path
// (see SubscriptionPath).
func NewClient(tokens oauth2.TokenSource, subscription string, opts ...ClientOption) *Client {
	c := &Client{
		tokens:       tokens,
		subscription: subscription,
		baseURL:      defaultBaseURL,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pullRequest struct {
	MaxMessages int `json:"maxMessages"`
}

type pullResponse struct {
	ReceivedMessages []receivedMessage `json:"receivedMessages"`
}

type receivedMessage struct {
	AckID   string `json:"ackId"`
	Message struct {
		Data        string `json:"data"`
		MessageID   string `json:"messageId"`
		PublishTime string `json:"publishTime"`
	} `json:"message"`
}

type acknowledgeRequest struct {
	AckIDs []string `json:"ackIds"`
}

// Pull fetches up to maxMessages messages. The call blocks until
// messages are available or the context deadline expires; the expiry is
// surfaced as the context error so callers can treat it as "no
// messages yet" rather than a failure.
func (c *Client) Pull(ctx context.Context, maxMessages int) ([]ports.QueueMessage, error) {
	var resp pullResponse
	if err := c.post(ctx, ":pull", pullRequest{MaxMessages: maxMessages}, &resp); err != nil {
		return nil, err
	}

	msgs := make([]ports.QueueMessage, 0, len(resp.ReceivedMessages))
	for _, rm := range resp.ReceivedMessages {
		data, err := base64.StdEncoding.DecodeString(rm.Message.Data)
		if err != nil {
			// Undecodable payloads still need to reach the reader so
			// they can be acked and dropped.
			data = nil
		}
		msgs = append(msgs, ports.QueueMessage{AckID: rm.AckID, Data: data})
	}
	return msgs, nil
}

// Ack settles messages so they are not redelivered.
func (c *Client) Ack(ctx context.Context, ackIDs []string) error {
	if len(ackIDs) == 0 {
		return nil
	}
	return c.post(ctx, ":acknowledge", acknowledgeRequest{AckIDs: ackIDs}, nil)
}

// Close is a no-op; the client holds no persistent connection state.
func (c *Client) Close() error {
	return nil
}

func (c *Client) post(ctx context.Context, verb string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/%s%s", c.baseURL, c.subscription, verb)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}
	tok.SetAuthHeader(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pubsub %s error (status %d): %s", verb, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
