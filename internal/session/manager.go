// Package session tracks conversation sessions: their lifecycle, the
// in-memory conversation context each one owns, and the durable message log.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/memory"
	"github.com/ent0n29/solace/internal/policy"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrEnded    = errors.New("session ended")
)

type Session struct {
	ID             string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Status         Status    `json:"status"`
	VoiceID        string    `json:"voice_id,omitempty"`
	PresenterID    string    `json:"presenter_id,omitempty"`
	MessageCount   int       `json:"message_count"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type entry struct {
	session *Session
	conv    *conversation.Context
}

type Config struct {
	InactivityTimeout time.Duration
	// EndedRetention is how long ended sessions stay readable before the
	// janitor forgets them.
	EndedRetention time.Duration
	SystemPrompt   string
}

// Manager owns every live session. Each session gets its own conversation
// context; contexts are never shared between sessions.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*entry
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	endedRetention    time.Duration
	systemPrompt      string
	store             memory.Store
	logger            zerolog.Logger
	onExpire          func(*Session)
	now               func() time.Time
}

func NewManager(store memory.Store, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = 30 * time.Minute
	}
	if cfg.EndedRetention <= 0 {
		cfg.EndedRetention = time.Hour
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = conversation.SystemPrompt
	}
	if store == nil {
		store = memory.NewInMemoryStore()
	}
	return &Manager{
		sessions:          make(map[string]*entry),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: cfg.InactivityTimeout,
		endedRetention:    cfg.EndedRetention,
		systemPrompt:      cfg.SystemPrompt,
		store:             store,
		logger:            logger.With().Str("component", "session_manager").Logger(),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

// NewConversation returns a fresh context seeded with the system prompt, for
// callers that have no session.
func (m *Manager) NewConversation() *conversation.Context {
	return conversation.Seeded(m.systemPrompt)
}

func (m *Manager) Create(userID, voiceID, presenterID string) *Session {
	now := m.now()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         strings.TrimSpace(userID),
		VoiceID:        strings.TrimSpace(voiceID),
		PresenterID:    strings.TrimSpace(presenterID),
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{session: s, conv: conversation.Seeded(m.systemPrompt)}
	if s.UserID != "" {
		m.sessionByUser[s.UserID] = s.ID
	}
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e.session), nil
}

// ActiveForUser returns the user's current active session, if any.
func (m *Manager) ActiveForUser(userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessionByUser[strings.TrimSpace(userID)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m.sessions[id].session), nil
}

// Conversation returns the live context of an active session.
func (m *Manager) Conversation(sessionID string) (*conversation.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if e.session.Status != StatusActive {
		return nil, ErrEnded
	}
	return e.conv, nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	e.session.LastActivityAt = m.now()
	return nil
}

// AppendMessage redacts PII from msg and appends it to the session's durable
// log.
func (m *Manager) AppendMessage(ctx context.Context, sessionID string, msg Message) error {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if e.session.Status != StatusActive {
		m.mu.Unlock()
		return ErrEnded
	}
	e.session.LastActivityAt = m.now()
	userID := e.session.UserID
	m.mu.Unlock()

	red := policy.Redact(msg.Content)
	err := m.store.SaveMessage(ctx, memory.MessageRecord{
		UserID:      userID,
		SessionID:   sessionID,
		Role:        msg.Role,
		Content:     red.Text,
		Emotion:     msg.Emotion,
		PIIRedacted: red.Changed(),
		CreatedAt:   m.now(),
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if red.Changed() {
		m.logger.Debug().Str("session_id", sessionID).Strs("kinds", red.Kinds).Msg("redacted pii before persisting message")
	}

	m.mu.Lock()
	if e, ok := m.sessions[sessionID]; ok {
		e.session.MessageCount++
	}
	m.mu.Unlock()
	return nil
}

// View returns the session with up to limit of its most recent messages.
func (m *Manager) View(ctx context.Context, sessionID string, limit int) (View, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return View{}, err
	}
	records, err := m.store.SessionMessages(ctx, sessionID, limit)
	if err != nil {
		return View{}, fmt.Errorf("load messages: %w", err)
	}
	msgs := make([]StoredMessage, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, StoredMessage{
			ID:          r.ID,
			Role:        r.Role,
			Content:     r.Content,
			Emotion:     r.Emotion,
			PIIRedacted: r.PIIRedacted,
			CreatedAt:   r.CreatedAt,
		})
	}
	return View{Session: s, InactivityTTLMS: m.inactivityTimeout.Milliseconds(), Messages: msgs}, nil
}

// End marks the session ended and drops its conversation context.
func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	m.endLocked(e)
	return clone(e.session), nil
}

func (m *Manager) endLocked(e *entry) {
	e.session.Status = StatusEnded
	e.session.LastActivityAt = m.now()
	e.conv = nil
	if e.session.UserID != "" && m.sessionByUser[e.session.UserID] == e.session.ID {
		delete(m.sessionByUser, e.session.UserID)
	}
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.sessions {
		if e.session.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := m.now()
	var expired []*Session

	m.mu.Lock()
	for id, e := range m.sessions {
		switch {
		case e.session.Status == StatusActive && now.Sub(e.session.LastActivityAt) >= m.inactivityTimeout:
			m.endLocked(e)
			expired = append(expired, clone(e.session))
		case e.session.Status == StatusEnded && now.Sub(e.session.LastActivityAt) >= m.endedRetention:
			delete(m.sessions, id)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, s := range expired {
		m.logger.Info().Str("session_id", s.ID).Msg("session expired after inactivity")
		if hook != nil {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
