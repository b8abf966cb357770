// Package conversation keeps the ordered turn history of one conversation.
// A Context is bound to a single session and is passed explicitly into every
// orchestration call; there is no process-wide history.
package conversation

import (
	"errors"
	"fmt"
	"sync"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// ErrInvalidTurnKind is returned when a turn would break the history shape:
// an unknown role, a first turn that is not system, or a second system turn.
var ErrInvalidTurnKind = errors.New("invalid turn kind")

type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// Context is safe for concurrent use; appends are applied in call order.
type Context struct {
	mu    sync.Mutex
	turns []Turn
}

// New returns an empty context. Its first append must be the system turn.
func New() *Context {
	return &Context{}
}

// Seeded returns a context that already holds the system prompt.
func Seeded(systemPrompt string) *Context {
	return &Context{turns: []Turn{{Role: RoleSystem, Text: systemPrompt}}}
}

// Append adds one turn and returns the resulting history.
func (c *Context) Append(t Turn) ([]Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.admit(len(c.turns), t); err != nil {
		return nil, err
	}
	c.turns = append(c.turns, t)
	return c.copyLocked(), nil
}

// AppendExchange appends a user turn and the assistant reply to it as one
// step, so concurrent exchanges on the same context never interleave.
func (c *Context) AppendExchange(user, assistant string) ([]Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := Turn{Role: RoleUser, Text: user}
	a := Turn{Role: RoleAssistant, Text: assistant}
	if err := c.admit(len(c.turns), u); err != nil {
		return nil, err
	}
	c.turns = append(c.turns, u, a)
	return c.copyLocked(), nil
}

func (c *Context) admit(pos int, t Turn) error {
	if !t.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTurnKind, t.Role)
	}
	if pos == 0 && t.Role != RoleSystem {
		return fmt.Errorf("%w: first turn must be %s, got %s", ErrInvalidTurnKind, RoleSystem, t.Role)
	}
	if pos > 0 && t.Role == RoleSystem {
		return fmt.Errorf("%w: only the first turn may be %s", ErrInvalidTurnKind, RoleSystem)
	}
	return nil
}

// Snapshot returns an ordered copy of every turn.
func (c *Context) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Window returns the system turn followed by at most the last n other
// turns. The stored history is never truncated; n <= 0 means everything.
func (c *Context) Window(n int) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || len(c.turns) <= n+1 {
		return c.copyLocked()
	}
	out := make([]Turn, 0, n+1)
	out = append(out, c.turns[0])
	out = append(out, c.turns[len(c.turns)-n:]...)
	return out
}

func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

func (c *Context) copyLocked() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}
