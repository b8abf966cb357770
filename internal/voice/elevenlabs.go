package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/reliability"
)

const (
	ElevenLabsName = "elevenlabs"

	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	DefaultElevenLabsVoiceID = "nLiZs38w2b9S5WVDWipV"
	DefaultElevenLabsModelID = "eleven_monolingual_v1"

	maxErrorBody = 4 << 10
	maxAudioBody = 32 << 20
)

type ElevenLabsConfig struct {
	APIKey          string
	BaseURL         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	// MaxAudioBytes bounds the accepted response body. Zero means 32 MiB.
	MaxAudioBytes int64
	HTTPClient    *http.Client
}

// ElevenLabsProvider calls the ElevenLabs REST text-to-speech endpoint and
// returns MP3 bytes.
type ElevenLabsProvider struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = DefaultElevenLabsModelID
	}
	cfg.Stability = clampUnit(cfg.Stability, 0.5)
	cfg.SimilarityBoost = clampUnit(cfg.SimilarityBoost, 0.5)
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = maxAudioBody
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ElevenLabsProvider{cfg: cfg, client: client}
}

func (p *ElevenLabsProvider) Name() string { return ElevenLabsName }

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return nil, generation.Invalid("voice_id is required")
	}
	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: p.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       p.cfg.Stability,
			SimilarityBoost: p.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, err
	}

	endpoint := p.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, p.fail(generation.ErrProviderRequest, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, p.fail(reliability.ClassifyTransportError(err), 0, "", err)
	}
	defer res.Body.Close()

	if kind := reliability.ClassifyHTTPStatus(res.StatusCode); kind != nil {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, p.fail(kind, res.StatusCode, strings.TrimSpace(string(detail)), nil)
	}
	audio, err := io.ReadAll(io.LimitReader(res.Body, p.cfg.MaxAudioBytes+1))
	if err != nil {
		return nil, p.fail(reliability.ClassifyTransportError(err), res.StatusCode, "read body", err)
	}
	if int64(len(audio)) > p.cfg.MaxAudioBytes {
		return nil, p.fail(generation.ErrProviderUnavailable, res.StatusCode, "audio body exceeds limit", nil)
	}
	if len(audio) == 0 {
		return nil, p.fail(generation.ErrProviderUnavailable, res.StatusCode, "empty audio body", nil)
	}
	return audio, nil
}

// ListVoices returns the account's voice catalogue sorted by name.
func (p *ElevenLabsProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, p.fail(reliability.ClassifyTransportError(err), 0, "", err)
	}
	defer res.Body.Close()
	if kind := reliability.ClassifyHTTPStatus(res.StatusCode); kind != nil {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, p.fail(kind, res.StatusCode, strings.TrimSpace(string(detail)), nil)
	}

	var parsed struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 2<<20)).Decode(&parsed); err != nil {
		return nil, p.fail(generation.ErrProviderUnavailable, res.StatusCode, "invalid voices payload", err)
	}

	out := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		v.VoiceID = strings.TrimSpace(v.VoiceID)
		v.Name = strings.TrimSpace(v.Name)
		if v.VoiceID == "" || v.Name == "" {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (p *ElevenLabsProvider) fail(kind error, status int, detail string, err error) error {
	return &generation.ProviderError{
		Provider: ElevenLabsName,
		Kind:     kind,
		Status:   status,
		Detail:   detail,
		Err:      err,
	}
}

func clampUnit(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	if v > 1 {
		return 1
	}
	return v
}
