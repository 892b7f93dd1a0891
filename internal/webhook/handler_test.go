package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tjfontaine/gchat-bridge/internal/api/flowhost"
	"github.com/tjfontaine/gchat-bridge/internal/handoff"
)

type fakeFlow struct {
	mu    sync.Mutex
	calls []flowhost.RunInput
}

func (f *fakeFlow) Run(_ context.Context, _ string, input flowhost.RunInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, input)
	return "answer", nil
}

func (f *fakeFlow) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFlow) lastCall() flowhost.RunInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestHandler(t *testing.T) (*Handler, *fakeFlow) {
	t.Helper()
	flow := &fakeFlow{}
	h, err := NewHandler(flow, handoff.NewDetector(nil, "@bridge-bot"), Config{
		FlowID:   "flow-1",
		BotEmail: "bridge-bot@example.iam.gserviceaccount.com",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return h, flow
}

func postEvent(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)
	return rec
}

func chatEventBody(text, email, messageName string) string {
	return fmt.Sprintf(`{
		"type": "MESSAGE",
		"message": {
			"text": %q,
			"name": %q,
			"sender": {"displayName": "Casey", "email": %q, "type": "HUMAN"},
			"thread": {"name": "spaces/AAA/threads/T1", "threadKey": "KEY123"}
		},
		"space": {"name": "spaces/AAA"}
	}`, text, messageName, email)
}

func TestHandleEvent_ForwardsMessage(t *testing.T) {
	h, flow := newTestHandler(t)

	rec := postEvent(h, chatEventBody("hello", "casey@example.com", "spaces/AAA/messages/M1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if flow.callCount() != 1 {
		t.Fatalf("expected 1 flow call, got %d", flow.callCount())
	}

	call := flow.lastCall()
	if call.Text != "hello" {
		t.Errorf("text = %q", call.Text)
	}
	if call.SessionID != "KEY123" {
		t.Errorf("session id = %q", call.SessionID)
	}
	if call.Tweaks["sender"] != "User" {
		t.Errorf("sender role = %q", call.Tweaks["sender"])
	}
}

func TestHandleEvent_OperatorPrefixStripped(t *testing.T) {
	h, flow := newTestHandler(t)

	postEvent(h, chatEventBody("@bridge-bot taking over", "dana@example.com", "spaces/AAA/messages/M1"))
	call := flow.lastCall()
	if call.Text != "taking over" {
		t.Errorf("text = %q", call.Text)
	}
	if call.Tweaks["sender"] != "Operator" {
		t.Errorf("sender role = %q", call.Tweaks["sender"])
	}
}

func TestHandleEvent_MalformedPayloadStill200(t *testing.T) {
	h, flow := newTestHandler(t)

	rec := postEvent(h, "{broken")
	if rec.Code != http.StatusOK {
		t.Errorf("malformed payload must not trigger retries, status = %d", rec.Code)
	}
	if flow.callCount() != 0 {
		t.Errorf("malformed payload reached the flow")
	}
}

func TestHandleEvent_NonMessageEventSkipped(t *testing.T) {
	h, flow := newTestHandler(t)

	rec := postEvent(h, `{"type": "ADDED_TO_SPACE", "space": {"name": "spaces/AAA"}}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if flow.callCount() != 0 {
		t.Errorf("non-message event reached the flow")
	}
}

func TestHandleEvent_BotMessageSkipped(t *testing.T) {
	h, flow := newTestHandler(t)

	postEvent(h, chatEventBody("echo", "bridge-bot@example.iam.gserviceaccount.com", "spaces/AAA/messages/M1"))
	if flow.callCount() != 0 {
		t.Errorf("bot message reached the flow")
	}
}

func TestHandleEvent_EmptyTextSkipped(t *testing.T) {
	h, flow := newTestHandler(t)

	postEvent(h, chatEventBody("   ", "casey@example.com", "spaces/AAA/messages/M1"))
	if flow.callCount() != 0 {
		t.Errorf("blank message reached the flow")
	}
}

func TestHandleEvent_RedeliveryDeduped(t *testing.T) {
	h, flow := newTestHandler(t)

	body := chatEventBody("hello", "casey@example.com", "spaces/AAA/messages/M1")
	postEvent(h, body)
	postEvent(h, body)
	if flow.callCount() != 1 {
		t.Errorf("expected redelivery dropped, got %d calls", flow.callCount())
	}

	// A different message still goes through.
	postEvent(h, chatEventBody("hello again", "casey@example.com", "spaces/AAA/messages/M2"))
	if flow.callCount() != 2 {
		t.Errorf("expected 2 calls, got %d", flow.callCount())
	}
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
