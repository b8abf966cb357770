package chat

import (
	"fmt"
	"strings"
)

// Setup is the resolved chat backend. Completer is nil when replies should
// use the canned fallback.
type Setup struct {
	Completer Completer
	Resolved  string
	Detail    string
}

// Resolve picks the completer for mode (auto|groq|openai|mock|none).
func Resolve(mode string, cfg OpenAIConfig) (Setup, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "auto"
	}
	hasKey := strings.TrimSpace(cfg.APIKey) != ""

	switch mode {
	case "auto", "groq", "openai":
		if !hasKey {
			return Setup{Resolved: "fallback", Detail: "canned replies (no chat api key)"}, nil
		}
		if mode != "auto" {
			cfg.Name = mode
		}
		c := NewOpenAICompleter(cfg)
		return Setup{Completer: c, Resolved: c.Name(), Detail: c.cfg.BaseURL + " " + c.cfg.Model}, nil
	case "mock":
		return Setup{Completer: NewMockCompleter(), Resolved: "mock", Detail: "mock"}, nil
	case "none":
		return Setup{Resolved: "fallback", Detail: "canned replies"}, nil
	default:
		return Setup{}, fmt.Errorf("invalid CHAT_PROVIDER: %q (expected auto|groq|openai|mock|none)", mode)
	}
}
