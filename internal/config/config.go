package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the solace service.
type Config struct {
	Env                      string
	BindAddr                 string
	ShutdownTimeout          time.Duration
	LogLevel                 string
	MetricsNamespace         string
	AllowedOrigins           []string
	PublicBaseURL            string
	SessionInactivityTimeout time.Duration

	ArtifactDir           string
	ArtifactTTL           time.Duration
	PlaceholderAudioPath  string
	PlaceholderVideoPaths []string

	ChatProvider    string
	GroqAPIKey      string
	ChatBaseURL     string
	ChatModel       string
	ChatMaxTokens   int
	ChatTemperature float64
	ChatTimeout     time.Duration
	// ChatHistoryWindow is how many recent turns accompany each completion.
	ChatHistoryWindow int

	SpeechProvider    string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	SpeechTimeout     time.Duration

	AvatarProvider      string
	DIDAPIKey           string
	DIDBaseURL          string
	DIDPresenterID      string
	AvatarSubmitTimeout time.Duration
	AvatarPollInterval  time.Duration
	AvatarPollAttempts  int

	ProviderRatePerSecond float64
	ProviderRateBurst     int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		Env:                      envOrDefault("APP_ENV", "development"),
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8000"),
		ShutdownTimeout:          15 * time.Second,
		LogLevel:                 stringsTrimSpace("APP_LOG_LEVEL"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "solace"),
		AllowedOrigins:           listFromEnv("APP_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"}),
		PublicBaseURL:            strings.TrimRight(stringsTrimSpace("APP_PUBLIC_BASE_URL"), "/"),
		SessionInactivityTimeout: 30 * time.Minute,

		ArtifactDir:           envOrDefault("ARTIFACT_DIR", "static"),
		ArtifactTTL:           time.Hour,
		PlaceholderAudioPath:  stringsTrimSpace("PLACEHOLDER_AUDIO_PATH"),
		PlaceholderVideoPaths: listFromEnv("PLACEHOLDER_VIDEO_PATHS", nil),

		ChatProvider:      envOrDefault("CHAT_PROVIDER", "auto"),
		GroqAPIKey:        stringsTrimSpace("GROQ_API_KEY"),
		ChatBaseURL:       envOrDefault("CHAT_BASE_URL", "https://api.groq.com/openai/v1"),
		ChatModel:         envOrDefault("CHAT_MODEL", "llama-3.1-8b-instant"),
		ChatMaxTokens:     300,
		ChatTemperature:   0.7,
		ChatTimeout:       30 * time.Second,
		ChatHistoryWindow: 20,

		SpeechProvider:    envOrDefault("SPEECH_PROVIDER", "auto"),
		ElevenLabsAPIKey:  stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		// Default to a calm premade voice.
		ElevenLabsVoiceID: envOrDefault("ELEVENLABS_VOICE_ID", "nLiZs38w2b9S5WVDWipV"),
		ElevenLabsModelID: envOrDefault("ELEVENLABS_MODEL_ID", "eleven_monolingual_v1"),
		SpeechTimeout:     60 * time.Second,

		AvatarProvider:      envOrDefault("AVATAR_PROVIDER", "auto"),
		DIDAPIKey:           stringsTrimSpace("DID_API_KEY"),
		DIDBaseURL:          envOrDefault("DID_BASE_URL", "https://api.d-id.com"),
		DIDPresenterID:      envOrDefault("DID_PRESENTER_ID", "amy-jcwCkr1grs"),
		AvatarSubmitTimeout: 30 * time.Second,
		AvatarPollInterval:  2 * time.Second,
		AvatarPollAttempts:  30,

		ProviderRatePerSecond: 5,
		ProviderRateBurst:     5,

		DatabaseURL: stringsTrimSpace("DATABASE_URL"),
	}

	var err error
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"APP_SESSION_INACTIVITY_TIMEOUT", &cfg.SessionInactivityTimeout},
		{"ARTIFACT_TTL", &cfg.ArtifactTTL},
		{"CHAT_TIMEOUT", &cfg.ChatTimeout},
		{"SPEECH_TIMEOUT", &cfg.SpeechTimeout},
		{"AVATAR_SUBMIT_TIMEOUT", &cfg.AvatarSubmitTimeout},
		{"AVATAR_POLL_INTERVAL", &cfg.AvatarPollInterval},
	} {
		if *d.dst, err = durationFromEnv(d.key, *d.dst); err != nil {
			return Config{}, err
		}
	}
	for _, n := range []struct {
		key string
		dst *int
	}{
		{"CHAT_MAX_TOKENS", &cfg.ChatMaxTokens},
		{"CHAT_HISTORY_WINDOW", &cfg.ChatHistoryWindow},
		{"AVATAR_POLL_ATTEMPTS", &cfg.AvatarPollAttempts},
		{"PROVIDER_RATE_BURST", &cfg.ProviderRateBurst},
	} {
		if *n.dst, err = intFromEnv(n.key, *n.dst); err != nil {
			return Config{}, err
		}
	}
	if cfg.ChatTemperature, err = floatFromEnv("CHAT_TEMPERATURE", cfg.ChatTemperature); err != nil {
		return Config{}, err
	}
	if cfg.ProviderRatePerSecond, err = floatFromEnv("PROVIDER_RATE_PER_SECOND", cfg.ProviderRatePerSecond); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would disable a timeout or budget.
func (c Config) Validate() error {
	positive := []struct {
		key string
		d   time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"ARTIFACT_TTL", c.ArtifactTTL},
		{"CHAT_TIMEOUT", c.ChatTimeout},
		{"SPEECH_TIMEOUT", c.SpeechTimeout},
		{"AVATAR_SUBMIT_TIMEOUT", c.AvatarSubmitTimeout},
		{"AVATAR_POLL_INTERVAL", c.AvatarPollInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive", p.key)
		}
	}
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if c.AvatarPollAttempts <= 0 {
		return fmt.Errorf("AVATAR_POLL_ATTEMPTS must be positive")
	}
	if c.ChatMaxTokens <= 0 {
		return fmt.Errorf("CHAT_MAX_TOKENS must be positive")
	}
	if c.ChatHistoryWindow < 0 {
		return fmt.Errorf("CHAT_HISTORY_WINDOW must be >= 0")
	}
	if c.ChatTemperature < 0 || c.ChatTemperature > 2 {
		return fmt.Errorf("CHAT_TEMPERATURE must be within [0, 2]")
	}
	if c.ProviderRatePerSecond <= 0 {
		return fmt.Errorf("PROVIDER_RATE_PER_SECOND must be positive")
	}
	if c.ProviderRateBurst <= 0 {
		return fmt.Errorf("PROVIDER_RATE_BURST must be positive")
	}
	if strings.TrimSpace(c.ArtifactDir) == "" {
		return fmt.Errorf("ARTIFACT_DIR must not be empty")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// listFromEnv splits a comma separated value, dropping blanks.
func listFromEnv(key string, fallback []string) []string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
