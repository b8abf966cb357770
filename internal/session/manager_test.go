package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/memory"
)

func newTestManager(timeout time.Duration) *Manager {
	return NewManager(memory.NewInMemoryStore(), Config{InactivityTimeout: timeout}, zerolog.Nop())
}

func TestManagerCreateGetEnd(t *testing.T) {
	m := newTestManager(time.Minute)
	s := m.Create("u1", "voice-1", "")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.VoiceID != "voice-1" || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}
	if active, err := m.ActiveForUser("u1"); err != nil || active.ID != s.ID {
		t.Fatalf("ActiveForUser() = %v, %v", active, err)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.Conversation(s.ID); !errors.Is(err, ErrEnded) {
		t.Fatalf("Conversation() after End error = %v, want ErrEnded", err)
	}
	if _, err := m.ActiveForUser("u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ActiveForUser() after End error = %v, want ErrNotFound", err)
	}
}

func TestEachSessionOwnsItsConversation(t *testing.T) {
	m := newTestManager(time.Minute)
	a := m.Create("alice", "", "")
	b := m.Create("bob", "", "")

	ca, err := m.Conversation(a.ID)
	if err != nil {
		t.Fatalf("Conversation(a) error = %v", err)
	}
	cb, err := m.Conversation(b.ID)
	if err != nil {
		t.Fatalf("Conversation(b) error = %v", err)
	}
	if _, err := ca.AppendExchange("I feel anxious", "That sounds hard."); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	if cb.Len() != 1 {
		t.Fatalf("bob's conversation has %d turns, want only the system turn", cb.Len())
	}
	if ca.Snapshot()[0].Role != conversation.RoleSystem {
		t.Fatalf("first turn is not the system prompt")
	}
}

func TestAppendMessageRedactsAndPersists(t *testing.T) {
	m := newTestManager(time.Minute)
	s := m.Create("u1", "", "")
	ctx := context.Background()

	if err := m.AppendMessage(ctx, s.ID, Message{Role: "user", Content: "mail me at sam@example.com", Emotion: "sad"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := m.AppendMessage(ctx, s.ID, Message{Role: "assistant", Content: "I'm here for you."}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	view, err := m.View(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if view.MessageCount != 2 || len(view.Messages) != 2 {
		t.Fatalf("MessageCount = %d, messages = %d, want 2/2", view.MessageCount, len(view.Messages))
	}
	first := view.Messages[0]
	if strings.Contains(first.Content, "sam@example.com") || !first.PIIRedacted {
		t.Fatalf("first message not redacted: %+v", first)
	}
	if first.Emotion != "sad" {
		t.Fatalf("Emotion = %q, want sad", first.Emotion)
	}
	if view.Messages[1].PIIRedacted {
		t.Fatalf("second message flagged as redacted")
	}
}

func TestAppendMessageUnknownOrEndedSession(t *testing.T) {
	m := newTestManager(time.Minute)
	if err := m.AppendMessage(context.Background(), "missing", Message{Role: "user", Content: "hi"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	s := m.Create("u1", "", "")
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if err := m.AppendMessage(context.Background(), s.ID, Message{Role: "user", Content: "hi"}); !errors.Is(err, ErrEnded) {
		t.Fatalf("error = %v, want ErrEnded", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := newTestManager(30 * time.Millisecond)
	var expired atomic.Int32
	m.SetExpireHook(func(*Session) { expired.Add(1) })
	s := m.Create("u1", "", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := m.Get(s.ID)
		if err == nil && got.Status == StatusEnded {
			if expired.Load() != 1 {
				t.Fatalf("expire hook ran %d times, want 1", expired.Load())
			}
			if m.ActiveCount() != 0 {
				t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session was not expired by janitor")
}

func TestJanitorForgetsEndedSessionsAfterRetention(t *testing.T) {
	m := NewManager(nil, Config{InactivityTimeout: time.Minute, EndedRetention: time.Minute}, zerolog.Nop())
	clock := time.Now().UTC()
	m.now = func() time.Time { return clock }

	s := m.Create("u1", "", "")
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	m.expireInactive()

	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}
