package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/gchat-bridge/internal/api/flowhost"
	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
	"github.com/tjfontaine/gchat-bridge/internal/queue"
	"github.com/tjfontaine/gchat-bridge/internal/sender"
)

type flowCall struct {
	flowID string
	input  flowhost.RunInput
}

type fakeFlow struct {
	mu     sync.Mutex
	calls  []flowCall
	answer string
	err    error
}

func (f *fakeFlow) Run(_ context.Context, flowID string, input flowhost.RunInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, flowCall{flowID: flowID, input: input})
	return f.answer, f.err
}

func (f *fakeFlow) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFlow) lastCall() flowCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sender.SendRequest
	err  error
}

func (f *fakeSender) Send(_ context.Context, req sender.SendRequest) (*sender.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	if f.err != nil {
		return nil, f.err
	}
	return &sender.SendResult{MessageName: "spaces/AAA/messages/M1"}, nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// drainSubscriber replays batches then blocks until cancellation.
type drainSubscriber struct {
	mu      sync.Mutex
	batches [][]ports.QueueMessage
}

func (s *drainSubscriber) Pull(ctx context.Context, _ int) ([]ports.QueueMessage, error) {
	s.mu.Lock()
	if len(s.batches) > 0 {
		batch := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return batch, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *drainSubscriber) Ack(context.Context, []string) error { return nil }
func (s *drainSubscriber) Close() error                        { return nil }

func messagePayload(text, threadKey string) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "MESSAGE",
		"message": {
			"text": %q,
			"name": "spaces/AAA/messages/M-%s",
			"sender": {"displayName": "Casey", "email": "casey@example.com", "type": "HUMAN"},
			"thread": {"name": "spaces/AAA/threads/T1", "threadKey": %q}
		},
		"space": {"name": "spaces/AAA"}
	}`, text, text, threadKey))
}

// runUntil runs the worker until check passes or the deadline hits.
func runUntil(t *testing.T, w *Worker, check func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for !check() {
		select {
		case <-deadline:
			cancel()
			t.Fatal("condition not reached before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v on cancellation", err)
	}
}

func TestRun_ProcessesMessageThroughFlow(t *testing.T) {
	sub := &drainSubscriber{batches: [][]ports.QueueMessage{{
		{AckID: "a1", Data: messagePayload("where is my order?", "KEY123")},
	}}}
	flow := &fakeFlow{answer: "it shipped yesterday"}

	w := New(queue.NewReader(sub, nil), flow, nil, Config{FlowID: "flow-1"}, nil)
	runUntil(t, w, func() bool { return flow.callCount() >= 1 })

	call := flow.lastCall()
	if call.flowID != "flow-1" {
		t.Errorf("flowID = %q", call.flowID)
	}
	if call.input.Text != "where is my order?" {
		t.Errorf("text = %q", call.input.Text)
	}
	if call.input.SessionID != "KEY123" {
		t.Errorf("session id must follow the thread key, got %q", call.input.SessionID)
	}
	if call.input.Tweaks["thread_name"] != "spaces/AAA/threads/T1" ||
		call.input.Tweaks["sender_name"] != "Casey" ||
		call.input.Tweaks["space_name"] != "spaces/AAA" {
		t.Errorf("tweaks = %v", call.input.Tweaks)
	}
}

func TestRun_SessionFallsBackToThreadName(t *testing.T) {
	sub := &drainSubscriber{batches: [][]ports.QueueMessage{{
		{AckID: "a1", Data: messagePayload("hi", "")},
	}}}
	flow := &fakeFlow{answer: "hello"}

	w := New(queue.NewReader(sub, nil), flow, nil, Config{FlowID: "flow-1"}, nil)
	runUntil(t, w, func() bool { return flow.callCount() >= 1 })

	if got := flow.lastCall().input.SessionID; got != "spaces/AAA/threads/T1" {
		t.Errorf("session id = %q", got)
	}
}

func TestRun_RepliesWhenEnabled(t *testing.T) {
	sub := &drainSubscriber{batches: [][]ports.QueueMessage{{
		{AckID: "a1", Data: messagePayload("hi", "KEY123")},
	}}}
	flow := &fakeFlow{answer: "hello there"}
	replies := &fakeSender{}

	w := New(queue.NewReader(sub, nil), flow, replies, Config{
		FlowID:      "flow-1",
		Replies:     true,
		SpaceID:     "AAA",
		SenderLabel: "AI",
	}, nil)
	runUntil(t, w, func() bool { return replies.sentCount() >= 1 })

	replies.mu.Lock()
	sent := replies.sent[0]
	replies.mu.Unlock()
	if sent.Text != "hello there" || sent.SpaceID != "AAA" || sent.SenderLabel != "AI" {
		t.Errorf("sent = %+v", sent)
	}
	if sent.ThreadName != "spaces/AAA/threads/T1" || sent.ThreadKey != "KEY123" {
		t.Errorf("thread fields = %q %q", sent.ThreadName, sent.ThreadKey)
	}
}

func TestRun_NoReplyWhenFlowSilent(t *testing.T) {
	sub := &drainSubscriber{batches: [][]ports.QueueMessage{{
		{AckID: "a1", Data: messagePayload("hi", "KEY123")},
	}}}
	flow := &fakeFlow{answer: ""}
	replies := &fakeSender{}

	w := New(queue.NewReader(sub, nil), flow, replies, Config{
		FlowID:  "flow-1",
		Replies: true,
		SpaceID: "AAA",
	}, nil)
	runUntil(t, w, func() bool { return flow.callCount() >= 1 })

	if replies.sentCount() != 0 {
		t.Errorf("expected no reply for an empty answer, got %d", replies.sentCount())
	}
}

func TestRun_EmptyTextSkipped(t *testing.T) {
	sub := &drainSubscriber{batches: [][]ports.QueueMessage{
		{{AckID: "a1", Data: messagePayload("  ", "KEY123")}},
		{{AckID: "a2", Data: messagePayload("real message", "KEY123")}},
	}}
	flow := &fakeFlow{answer: "ok"}

	w := New(queue.NewReader(sub, nil), flow, nil, Config{FlowID: "flow-1"}, nil)
	runUntil(t, w, func() bool { return flow.callCount() >= 1 })

	if got := flow.lastCall().input.Text; got != "real message" {
		t.Errorf("blank message reached the flow: %q", got)
	}
}

func TestRun_FlowFailureKeepsLoopAlive(t *testing.T) {
	sub := &drainSubscriber{batches: [][]ports.QueueMessage{
		{{AckID: "a1", Data: messagePayload("first", "KEY123")}},
		{{AckID: "a2", Data: messagePayload("second", "KEY123")}},
	}}
	flow := &fakeFlow{err: errors.New("flow host down")}

	w := New(queue.NewReader(sub, nil), flow, nil, Config{FlowID: "flow-1"}, nil)
	runUntil(t, w, func() bool { return flow.callCount() >= 2 })
}

func TestRun_PollingModeCycles(t *testing.T) {
	sub := &drainSubscriber{batches: [][]ports.QueueMessage{
		{{AckID: "a1", Data: messagePayload("hi", "KEY123")}},
	}}
	flow := &fakeFlow{answer: "ok"}

	w := New(queue.NewReader(sub, nil), flow, nil, Config{
		FlowID:     "flow-1",
		Mode:       ModePolling,
		PollBudget: 50 * time.Millisecond,
	}, nil)
	runUntil(t, w, func() bool { return flow.callCount() >= 1 })
}
