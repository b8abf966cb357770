package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/reliability"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.1-8b-instant"
	DefaultMaxTokens   = 300
	DefaultTemperature = 0.7

	defaultHTTPTimeout = 60 * time.Second
)

type OpenAIConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAICompleter calls any OpenAI-compatible /chat/completions endpoint.
// The default base URL targets Groq.
type OpenAICompleter struct {
	cfg    OpenAIConfig
	client *http.Client
}

func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.Model = coalesce(cfg.Model, DefaultModel)
	cfg.Name = coalesce(cfg.Name, "groq")
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &OpenAICompleter{cfg: cfg, client: client}
}

func (c *OpenAICompleter) Name() string { return c.cfg.Name }

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

func (c *OpenAICompleter) Complete(ctx context.Context, turns []conversation.Turn, opts Options) (string, error) {
	if len(turns) == 0 {
		return "", generation.Invalid("at least one turn is required")
	}
	body := completionRequest{
		Model:       coalesce(opts.Model, c.cfg.Model),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    make([]message, 0, len(turns)),
	}
	if opts.MaxTokens > 0 {
		body.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		body.Temperature = opts.Temperature
	}
	for _, t := range turns {
		body.Messages = append(body.Messages, message{Role: string(t.Role), Content: t.Text})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", c.fail(generation.ErrProviderRequest, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.client.Do(req)
	if err != nil {
		return "", c.fail(reliability.ClassifyTransportError(err), 0, "", err)
	}
	defer res.Body.Close()

	if kind := reliability.ClassifyHTTPStatus(res.StatusCode); kind != nil {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", c.fail(kind, res.StatusCode, strings.TrimSpace(string(detail)), nil)
	}

	var parsed completionResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", c.fail(generation.ErrProviderUnavailable, res.StatusCode, "invalid completion payload", err)
	}
	if len(parsed.Choices) == 0 {
		return "", c.fail(generation.ErrProviderUnavailable, res.StatusCode, "no choices", nil)
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", c.fail(generation.ErrProviderUnavailable, res.StatusCode, "empty completion", nil)
	}
	return text, nil
}

func (c *OpenAICompleter) fail(kind error, status int, detail string, err error) error {
	return &generation.ProviderError{Provider: c.cfg.Name, Kind: kind, Status: status, Detail: detail, Err: err}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
