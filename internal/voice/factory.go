package voice

import (
	"fmt"
	"strings"
)

// Setup is the resolved speech backend. Provider is nil when requests
// should go straight to the placeholder.
type Setup struct {
	Provider SpeechProvider
	Resolved string
	Detail   string
}

// Resolve picks the speech provider for mode (auto|elevenlabs|mock|placeholder).
// A missing API key never fails startup: the client degrades instead.
func Resolve(mode string, cfg ElevenLabsConfig) (Setup, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "auto"
	}
	hasKey := strings.TrimSpace(cfg.APIKey) != ""

	switch mode {
	case "auto", "elevenlabs":
		if hasKey {
			return Setup{Provider: NewElevenLabsProvider(cfg), Resolved: ElevenLabsName, Detail: "elevenlabs rest"}, nil
		}
		detail := "placeholder (no elevenlabs key)"
		if mode == "elevenlabs" {
			detail = "placeholder (SPEECH_PROVIDER=elevenlabs but ELEVENLABS_API_KEY is not set)"
		}
		return Setup{Resolved: "placeholder", Detail: detail}, nil
	case "mock":
		return Setup{Provider: NewMockProvider(), Resolved: MockName, Detail: "mock tone"}, nil
	case "placeholder", "none":
		return Setup{Resolved: "placeholder", Detail: "placeholder"}, nil
	default:
		return Setup{}, fmt.Errorf("invalid SPEECH_PROVIDER: %q (expected auto|elevenlabs|mock|placeholder)", mode)
	}
}
