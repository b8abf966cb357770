package session

import "time"

// CreateRequest defines payload for creating a new session.
type CreateRequest struct {
	UserID      string `json:"user_id"`
	VoiceID     string `json:"voice_id"`
	PresenterID string `json:"presenter_id"`
}

// Message is one entry appended to a session's durable log.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Emotion string `json:"emotion,omitempty"`
}

// View is a session together with its persisted messages.
type View struct {
	*Session
	InactivityTTLMS int64           `json:"inactivity_ttl_ms"`
	Messages        []StoredMessage `json:"messages"`
}

type StoredMessage struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Emotion     string    `json:"emotion,omitempty"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}
