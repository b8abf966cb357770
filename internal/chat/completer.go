// Package chat talks to chat-completion providers. A Completer turns an
// ordered conversation payload into the assistant's next reply.
package chat

import (
	"context"

	"github.com/ent0n29/solace/internal/conversation"
)

// Options tune one completion. Zero values fall back to the completer's
// configured defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completer errors should be *generation.ProviderError values classified as
// rate-limited, auth or unavailable.
type Completer interface {
	Name() string
	Complete(ctx context.Context, turns []conversation.Turn, opts Options) (string, error)
}
