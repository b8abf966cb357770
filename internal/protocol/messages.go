package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserMessage    MessageType = "user_message"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeAssistantAudio MessageType = "assistant_audio"
	TypeAssistantVideo MessageType = "assistant_video"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserMessage is one user turn sent by the client. Avatar asks for a video
// artifact in addition to the reply and speech.
type UserMessage struct {
	Type    MessageType `json:"type"`
	Text    string      `json:"text"`
	Emotion string      `json:"emotion,omitempty"`
	Avatar  bool        `json:"avatar,omitempty"`
}

type AssistantReply struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Text      string      `json:"text"`
	Status    string      `json:"status"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// AssistantMedia carries an artifact URL. It is used for both
// assistant_audio and assistant_video.
type AssistantMedia struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	URL       string      `json:"url"`
	Status    string      `json:"status"`
	Provider  string      `json:"provider,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserMessage:
		var msg UserMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, errors.New("invalid user_message: text is required")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// TypeOf returns the message type of an outbound payload, for metrics.
func TypeOf(msg any) MessageType {
	switch m := msg.(type) {
	case AssistantReply:
		return m.Type
	case AssistantMedia:
		return m.Type
	case SystemEvent:
		return m.Type
	case ErrorEvent:
		return m.Type
	case UserMessage:
		return m.Type
	default:
		return "unknown"
	}
}
