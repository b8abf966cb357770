// Package memory is the durable message log behind sessions. Messages are
// written after PII redaction and read back in chronological order.
package memory

import (
	"context"
	"time"
)

// MessageRecord stores a single user or assistant message of a session.
type MessageRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Emotion     string    `json:"emotion,omitempty"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves session messages.
type Store interface {
	SaveMessage(ctx context.Context, record MessageRecord) error
	// SessionMessages returns up to limit of the most recent messages of a
	// session, oldest first. limit <= 0 returns all of them.
	SessionMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error)
	Close() error
}
