package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
)

func staticTokens() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
}

func TestCreateMessage(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	var gotBody MessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(MessageResponse{
			Name:       "spaces/AAA/messages/M1",
			CreateTime: "2026-03-01T12:00:00Z",
			Thread:     &ThreadRef{Name: "spaces/AAA/threads/T1", ThreadKey: "KEY123"},
		})
	}))
	defer srv.Close()

	client := NewClient(staticTokens(), WithBaseURL(srv.URL))
	resp, err := client.CreateMessage(context.Background(), "spaces/AAA", &MessageRequest{
		Text:   "hello",
		Thread: &ThreadRef{ThreadKey: "KEY123"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotPath != "/v1/spaces/AAA/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "messageReplyOption=REPLY_MESSAGE_FALLBACK_TO_NEW_THREAD" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Text != "hello" || gotBody.Thread == nil || gotBody.Thread.ThreadKey != "KEY123" {
		t.Errorf("body = %+v", gotBody)
	}
	if resp.Name != "spaces/AAA/messages/M1" || resp.Thread.Name != "spaces/AAA/threads/T1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateMessage_NoThreadOmitsReplyOption(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(MessageResponse{Name: "spaces/AAA/messages/M1"})
	}))
	defer srv.Close()

	client := NewClient(staticTokens(), WithBaseURL(srv.URL))
	if _, err := client.CreateMessage(context.Background(), "spaces/AAA", &MessageRequest{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if gotQuery != "" {
		t.Errorf("expected no query for threadless message, got %q", gotQuery)
	}
}

func TestCreateMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "bot not in space", "status": "PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	client := NewClient(staticTokens(), WithBaseURL(srv.URL))
	_, err := client.CreateMessage(context.Background(), "spaces/AAA", &MessageRequest{Text: "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !domain.IsType(err, domain.ErrorTypeSend) {
		t.Errorf("expected send error, got %v", err)
	}
}

func TestCreateMessage_TokenFailure(t *testing.T) {
	client := NewClient(failingTokenSource{}, WithBaseURL("http://localhost:0"))

	_, err := client.CreateMessage(context.Background(), "spaces/AAA", &MessageRequest{Text: "x"})
	if !domain.IsType(err, domain.ErrorTypeConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("no token")
}
