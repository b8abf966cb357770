package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/solace/internal/conversation"
)

// MockCompleter answers deterministically from the last user turn. It keeps
// the full pipeline exercisable without a provider account.
type MockCompleter struct{}

func NewMockCompleter() *MockCompleter { return &MockCompleter{} }

func (m *MockCompleter) Name() string { return "mock" }

func (m *MockCompleter) Complete(ctx context.Context, turns []conversation.Turn, _ Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	last := ""
	prior := 0
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != conversation.RoleUser {
			continue
		}
		if last == "" {
			last = strings.TrimSpace(turns[i].Text)
			continue
		}
		prior++
	}
	if last == "" {
		return "I am here and listening. What is on your mind?", nil
	}
	if prior == 0 {
		return fmt.Sprintf("I hear you: %s. How long have you been feeling this way?", strings.TrimRight(last, ".!?")), nil
	}
	return fmt.Sprintf("I hear you: %s. Thank you for sharing more with me.", strings.TrimRight(last, ".!?")), nil
}
