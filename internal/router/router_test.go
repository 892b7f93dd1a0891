package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tjfontaine/gchat-bridge/internal/adapters/store/memory"
	"github.com/tjfontaine/gchat-bridge/internal/control"
	"github.com/tjfontaine/gchat-bridge/internal/core/domain"
	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
	"github.com/tjfontaine/gchat-bridge/internal/handoff"
	"github.com/tjfontaine/gchat-bridge/internal/queue"
	"github.com/tjfontaine/gchat-bridge/internal/threadkey"
)

// scriptedSubscriber hands out one batch then runs dry.
type scriptedSubscriber struct {
	batches [][]ports.QueueMessage
}

func (s *scriptedSubscriber) Pull(ctx context.Context, _ int) ([]ports.QueueMessage, error) {
	if len(s.batches) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *scriptedSubscriber) Ack(context.Context, []string) error { return nil }
func (s *scriptedSubscriber) Close() error                        { return nil }

func operatorPayload(text string) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "MESSAGE",
		"message": {
			"text": %q,
			"sender": {"displayName": "Dana", "email": "dana@example.com", "type": "HUMAN"},
			"thread": {"name": "spaces/AAA/threads/T1", "threadKey": "KEY123"}
		},
		"space": {"name": "spaces/AAA"}
	}`, text))
}

type fixture struct {
	router *Router
	docs   *memory.Store
	ctl    *control.Store
}

func newFixture(t *testing.T, sub ports.QueueSubscriber, cfg Config) *fixture {
	t.Helper()
	docs := memory.New()
	keys := threadkey.NewStore(docs, "", nil)
	ctl := control.NewStore(docs, "", nil)
	reader := queue.NewReader(sub, nil)
	detector := handoff.NewDetector(nil, "@bridge-bot")
	if cfg.CheckBudget == 0 {
		cfg.CheckBudget = 100 * time.Millisecond
	}
	return &fixture{
		router: New(keys, ctl, reader, detector, cfg, nil),
		docs:   docs,
		ctl:    ctl,
	}
}

func (f *fixture) controller(t *testing.T, threadKey string) domain.Controller {
	t.Helper()
	state, err := f.ctl.Read(context.Background(), threadKey)
	if err != nil {
		t.Fatal(err)
	}
	return state.Controller
}

func TestRoute_NoSessionGoesToAI(t *testing.T) {
	f := newFixture(t, &scriptedSubscriber{}, Config{})

	d := f.router.Route(context.Background(), domain.ChatMessage{Text: "hi"}, domain.SessionRef{})
	if d.Route != domain.RouteAI {
		t.Errorf("expected AI route, got %s", d.Route)
	}
	if d.ThreadKey != "" {
		t.Errorf("expected no thread key, got %q", d.ThreadKey)
	}
}

func TestRoute_QuietQueueStaysWithAI(t *testing.T) {
	f := newFixture(t, &scriptedSubscriber{}, Config{})

	d := f.router.Route(context.Background(),
		domain.ChatMessage{Text: "hi"},
		domain.SessionRef{Ambient: "session-1"},
	)
	if d.Route != domain.RouteAI {
		t.Errorf("expected AI route, got %s", d.Route)
	}
	if d.ThreadKey == "" {
		t.Error("expected a thread key")
	}
	if d.OperatorMessage != nil {
		t.Errorf("expected no operator message, got %+v", d.OperatorMessage)
	}
}

func TestRoute_OperatorMessageTakesOver(t *testing.T) {
	sub := &scriptedSubscriber{batches: [][]ports.QueueMessage{{
		{AckID: "a1", Data: operatorPayload("@bridge-bot I'll take this one")},
	}}}
	f := newFixture(t, sub, Config{})

	d := f.router.Route(context.Background(),
		domain.ChatMessage{Text: "my order is late"},
		domain.SessionRef{Ambient: "session-1"},
	)

	if d.Route != domain.RouteHuman {
		t.Fatalf("expected HUMAN route, got %s", d.Route)
	}
	if d.OperatorMessage == nil {
		t.Fatal("expected the operator message to be forwarded")
	}
	if d.OperatorMessage.Text != "I'll take this one" {
		t.Errorf("expected mention prefix stripped, got %q", d.OperatorMessage.Text)
	}
	if d.OperatorMessage.Sender != "Dana" {
		t.Errorf("expected sender Dana, got %q", d.OperatorMessage.Sender)
	}
	if got := f.controller(t, d.ThreadKey); got != domain.ControllerHuman {
		t.Errorf("expected HUMAN persisted, got %s", got)
	}
}

func TestRoute_HandoffKeywordReturnsControlToAI(t *testing.T) {
	sub := &scriptedSubscriber{batches: [][]ports.QueueMessage{{
		{AckID: "a1", Data: operatorPayload("@ai all yours")},
	}}}
	f := newFixture(t, sub, Config{})

	// Thread is under human control before the turn.
	d0 := domain.SessionRef{Ambient: "session-1"}
	key := f.router.keys.GetOrCreate(context.Background(), "session-1", f.router.cfg.KeyConfig)
	if err := f.ctl.Write(context.Background(), key, domain.ControllerHuman); err != nil {
		t.Fatal(err)
	}

	d := f.router.Route(context.Background(), domain.ChatMessage{Text: "still there?"}, d0)

	if d.Route != domain.RouteAI {
		t.Fatalf("expected AI route after handoff keyword, got %s", d.Route)
	}
	if d.OperatorMessage != nil {
		t.Errorf("handoff command must not reach the customer, got %+v", d.OperatorMessage)
	}
	if got := f.controller(t, key); got != domain.ControllerAI {
		t.Errorf("expected AI persisted, got %s", got)
	}
}

func TestRoute_HumanHoldsThreadWithoutNewMessage(t *testing.T) {
	f := newFixture(t, &scriptedSubscriber{}, Config{})

	key := f.router.keys.GetOrCreate(context.Background(), "session-1", f.router.cfg.KeyConfig)
	if err := f.ctl.Write(context.Background(), key, domain.ControllerHuman); err != nil {
		t.Fatal(err)
	}

	d := f.router.Route(context.Background(),
		domain.ChatMessage{Text: "hello?"},
		domain.SessionRef{Ambient: "session-1"},
	)

	if d.Route != domain.RouteHuman {
		t.Errorf("expected HUMAN route, got %s", d.Route)
	}
	if d.OperatorMessage != nil {
		t.Errorf("expected no operator message, got %+v", d.OperatorMessage)
	}
}

func TestRoute_HumanInactivityTimeout(t *testing.T) {
	f := newFixture(t, &scriptedSubscriber{}, Config{HumanTimeout: time.Minute})

	key := f.router.keys.GetOrCreate(context.Background(), "session-1", f.router.cfg.KeyConfig)

	// Record human control with an activity stamp outside the window.
	stale := time.Now().Add(-10 * time.Minute).UTC().Format(time.RFC3339)
	if err := f.docs.Set(context.Background(), control.DefaultCollection, key, map[string]string{
		"controller":          "HUMAN",
		"last_human_activity": stale,
	}, false); err != nil {
		t.Fatal(err)
	}

	d := f.router.Route(context.Background(),
		domain.ChatMessage{Text: "anyone?"},
		domain.SessionRef{Ambient: "session-1"},
	)

	if d.Route != domain.RouteAI {
		t.Errorf("expected AI route after timeout, got %s", d.Route)
	}
	if got := f.controller(t, key); got != domain.ControllerAI {
		t.Errorf("expected timeout persisted as AI, got %s", got)
	}
}

func TestRoute_ExplicitSessionWinsOverAmbient(t *testing.T) {
	f := newFixture(t, &scriptedSubscriber{}, Config{})

	d1 := f.router.Route(context.Background(), domain.ChatMessage{Text: "hi"},
		domain.SessionRef{Explicit: "explicit-1", Ambient: "ambient-1"})
	d2 := f.router.Route(context.Background(), domain.ChatMessage{Text: "hi"},
		domain.SessionRef{Explicit: "explicit-1", Ambient: "ambient-2"})

	if d1.ThreadKey == "" || d1.ThreadKey != d2.ThreadKey {
		t.Errorf("explicit session must pin the thread key: %q vs %q", d1.ThreadKey, d2.ThreadKey)
	}
}

func TestRoute_NonOperatorSenderNameDefaults(t *testing.T) {
	payload := []byte(`{
		"type": "MESSAGE",
		"message": {
			"text": "checking in",
			"sender": {"email": "anon@example.com", "type": "HUMAN"},
			"thread": {"name": "spaces/AAA/threads/T1"}
		},
		"space": {"name": "spaces/AAA"}
	}`)
	sub := &scriptedSubscriber{batches: [][]ports.QueueMessage{{{AckID: "a1", Data: payload}}}}
	f := newFixture(t, sub, Config{})

	d := f.router.Route(context.Background(),
		domain.ChatMessage{Text: "hi"},
		domain.SessionRef{Ambient: "session-1"},
	)
	if d.Route != domain.RouteHuman || d.OperatorMessage == nil {
		t.Fatalf("expected forwarded human message, got %+v", d)
	}
	if d.OperatorMessage.Sender != "Support" {
		t.Errorf("expected default sender Support, got %q", d.OperatorMessage.Sender)
	}
}
