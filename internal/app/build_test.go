package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/solace/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		MetricsNamespace:         "test",
		SessionInactivityTimeout: time.Minute,
		ArtifactDir:              t.TempDir(),
		ArtifactTTL:              time.Hour,
		ChatProvider:             "auto",
		ChatMaxTokens:            300,
		ChatTimeout:              time.Second,
		SpeechProvider:           "auto",
		SpeechTimeout:            time.Second,
		AvatarProvider:           "auto",
		AvatarSubmitTimeout:      time.Second,
		AvatarPollInterval:       time.Second,
		AvatarPollAttempts:       3,
		ProviderRatePerSecond:    5,
		ProviderRateBurst:        5,
	}
}

func TestBuildWithoutCredentialsUsesFallbacks(t *testing.T) {
	res, err := Build(context.Background(), testConfig(t), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer res.Cleanup()

	if res.Chat.Provider != "fallback" {
		t.Fatalf("chat provider = %q, want fallback", res.Chat.Provider)
	}
	if res.Speech.Provider != "placeholder" || res.Avatar.Provider != "placeholder" {
		t.Fatalf("media providers = %q/%q, want placeholder", res.Speech.Provider, res.Avatar.Provider)
	}

	ts := httptest.NewServer(res.API.Router())
	defer ts.Close()
	r, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", r.StatusCode)
	}
}

func TestBuildRejectsUnknownProviderMode(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.ChatProvider = "telepathy" },
		func(c *config.Config) { c.SpeechProvider = "telepathy" },
		func(c *config.Config) { c.AvatarProvider = "telepathy" },
	} {
		cfg := testConfig(t)
		mutate(&cfg)
		if _, err := Build(context.Background(), cfg, nil, zerolog.Nop()); err == nil {
			t.Fatalf("Build() should reject unknown provider mode")
		}
	}
}
