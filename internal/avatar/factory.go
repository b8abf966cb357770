package avatar

import (
	"fmt"
	"strings"
)

// Setup is the resolved video backend. Provider is nil when requests should
// go straight to the placeholder.
type Setup struct {
	Provider VideoProvider
	Resolved string
	Detail   string
}

// Resolve picks the video provider for mode (auto|did|placeholder).
func Resolve(mode string, cfg DIDConfig) (Setup, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "auto"
	}
	switch mode {
	case "auto", "did", "d-id":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return Setup{Resolved: "placeholder", Detail: "placeholder (no d-id key)"}, nil
		}
		return Setup{Provider: NewDIDProvider(cfg), Resolved: DIDName, Detail: "d-id talks"}, nil
	case "placeholder", "none":
		return Setup{Resolved: "placeholder", Detail: "placeholder"}, nil
	default:
		return Setup{}, fmt.Errorf("invalid AVATAR_PROVIDER: %q (expected auto|did|placeholder)", mode)
	}
}
