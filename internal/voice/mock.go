package voice

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ent0n29/solace/internal/audio"
)

const MockName = "mock"

// MockProvider renders a short low tone for every request. It is used in
// development when no speech provider is configured but a real code path
// is still wanted.
type MockProvider struct {
	calls atomic.Int64
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return MockName }

func (p *MockProvider) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.calls.Add(1)
	d := time.Duration(len(strings.Fields(text))) * 200 * time.Millisecond
	if d < time.Second {
		d = time.Second
	}
	return audio.Tone{
		Frequency: 220,
		Amplitude: 0.2,
		Format:    audio.Format{SampleRate: 16000, Channels: 1},
	}.WAV(d)
}

func (p *MockProvider) ListVoices(context.Context) ([]Voice, error) {
	return []Voice{{VoiceID: "mock", Name: "Mock tone", Category: "mock"}}, nil
}

// Calls reports how many syntheses were served.
func (p *MockProvider) Calls() int64 { return p.calls.Load() }
