package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageUserMessage(t *testing.T) {
	raw := []byte(`{"type":"user_message","text":"I feel anxious","emotion":"anxious","avatar":true}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	um, ok := msg.(UserMessage)
	if !ok {
		t.Fatalf("message type = %T, want UserMessage", msg)
	}
	if um.Text != "I feel anxious" || um.Emotion != "anxious" || !um.Avatar {
		t.Fatalf("unexpected user message: %+v", um)
	}
}

func TestParseClientMessageRejectsBlankText(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"user_message","text":"   "}`)); err == nil {
		t.Fatalf("expected error for blank text")
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsGarbage(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected envelope error")
	}
}

func TestAssistantMediaJSON(t *testing.T) {
	raw, err := json.Marshal(AssistantMedia{
		Type:      TypeAssistantAudio,
		SessionID: "s1",
		TurnID:    "t1",
		URL:       "/audio/audio_abc.wav",
		Status:    "fallback",
		ErrorKind: "provider_auth",
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["type"] != "assistant_audio" || decoded["url"] != "/audio/audio_abc.wav" {
		t.Fatalf("unexpected payload: %s", raw)
	}
	if _, ok := decoded["provider"]; ok {
		t.Fatalf("empty provider should be omitted: %s", raw)
	}
	if TypeOf(AssistantMedia{Type: TypeAssistantVideo}) != TypeAssistantVideo {
		t.Fatalf("TypeOf() did not report the media type")
	}
}
