// Package voice is the speech provider client: it turns reply text into an
// audio artifact through a text-to-speech provider and degrades to a
// placeholder clip whenever the provider is absent or failing.
package voice

import "context"

// SpeechProvider synthesizes text into encoded audio bytes. Errors should be
// *generation.ProviderError values so the client can classify them.
type SpeechProvider interface {
	Name() string
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Voice is one entry of a provider's voice catalogue.
type Voice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// VoiceLister is implemented by providers that expose a voice catalogue.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}
