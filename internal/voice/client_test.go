package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/solace/internal/artifact"
	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/placeholder"
)

type fixture struct {
	store  *artifact.Store
	client *Client
	calls  *atomic.Int64
	swept  atomic.Int64
	failed []generation.ErrorKind
}

func newFixture(t *testing.T, apiKey string, handler http.HandlerFunc, timeout time.Duration) *fixture {
	t.Helper()
	calls := &atomic.Int64{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := artifact.NewStore(artifact.Options{Dir: t.TempDir(), PublicBaseURL: "http://test", Logger: zerolog.Nop()})
	require.NoError(t, err)

	setup, err := Resolve("auto", ElevenLabsConfig{APIKey: apiKey, BaseURL: srv.URL})
	require.NoError(t, err)

	f := &fixture{store: store, calls: calls}
	f.client = NewClient(setup.Provider, store, placeholder.New(store, placeholder.Config{}, zerolog.Nop()), ClientConfig{
		Timeout:     timeout,
		ArtifactTTL: time.Hour,
		OnSweep: func(removed int) {
			f.swept.Add(int64(removed))
		},
		OnFailure: func(_ string, kind generation.ErrorKind) {
			f.failed = append(f.failed, kind)
		},
	}, zerolog.Nop())
	return f
}

func artifactPath(t *testing.T, store *artifact.Store, url string) string {
	t.Helper()
	name := path.Base(url)
	p, err := store.Resolve(artifact.KindAudio, name)
	require.NoError(t, err, "artifact %s not on disk", name)
	return p
}

func TestSynthesizeWithoutCredentialNeverCallsNetwork(t *testing.T) {
	f := newFixture(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, time.Second)

	for _, text := range []string{"hello", "I feel anxious", "a much longer sentence about the week"} {
		res := f.client.Synthesize(context.Background(), text, "")
		assert.Equal(t, generation.StatusFallback, res.Status)
		assert.Equal(t, generation.ErrorKindUnconfigured, res.ErrorKind)
		artifactPath(t, f.store, res.ArtifactURL)
	}
	assert.Zero(t, f.calls.Load())
	assert.False(t, f.client.Configured())
}

func TestSynthesizeSuccessPersistsProviderAudio(t *testing.T) {
	var got ttsRequest
	var gotKey, gotPath string
	f := newFixture(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	}, time.Second)

	res := f.client.Synthesize(context.Background(), "hello there", "")
	require.Equal(t, generation.StatusOK, res.Status)
	assert.Equal(t, ElevenLabsName, res.Provider)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "/v1/text-to-speech/"+DefaultElevenLabsVoiceID, gotPath)
	assert.Equal(t, "hello there", got.Text)
	assert.Equal(t, DefaultElevenLabsModelID, got.ModelID)
	assert.InDelta(t, 0.5, got.VoiceSettings.Stability, 1e-9)

	p := artifactPath(t, f.store, res.ArtifactURL)
	assert.Equal(t, ".mp3", filepath.Ext(p))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "ID3fake-mp3", string(data))
}

func TestSynthesizeUnauthorizedFallsBackToPlaceholderFile(t *testing.T) {
	f := newFixture(t, "bad-key", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}, time.Second)

	res := f.client.Synthesize(context.Background(), "hello", "")
	assert.Equal(t, generation.StatusFallback, res.Status)
	assert.Equal(t, generation.ErrorKindAuth, res.ErrorKind)
	assert.Equal(t, int64(1), f.calls.Load())
	assert.Equal(t, []generation.ErrorKind{generation.ErrorKindAuth}, f.failed)

	p := artifactPath(t, f.store, res.ArtifactURL)
	kind, ok := artifact.ParseFilename(filepath.Base(p))
	require.True(t, ok)
	assert.Equal(t, artifact.KindAudio, kind)
	assert.Equal(t, ".wav", filepath.Ext(p))
}

func TestSynthesizeClassifiesProviderFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   generation.ErrorKind
	}{
		{"bad request", http.StatusBadRequest, generation.ErrorKindRequest},
		{"unprocessable", http.StatusUnprocessableEntity, generation.ErrorKindRequest},
		{"quota", http.StatusTooManyRequests, generation.ErrorKindRateLimited},
		{"server error", http.StatusInternalServerError, generation.ErrorKindUnavailable},
		{"bad gateway", http.StatusBadGateway, generation.ErrorKindUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "key", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}, time.Second)
			res := f.client.Synthesize(context.Background(), "hello", "voice-x")
			assert.Equal(t, generation.StatusFallback, res.Status)
			assert.Equal(t, tc.want, res.ErrorKind)
			artifactPath(t, f.store, res.ArtifactURL)
		})
	}
}

func TestSynthesizeTimeoutFallsBack(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, "key", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	res := f.client.Synthesize(context.Background(), "hello", "")
	assert.Equal(t, generation.StatusFallback, res.Status)
	assert.Equal(t, generation.ErrorKindTimeout, res.ErrorKind)
	artifactPath(t, f.store, res.ArtifactURL)
}

func TestSynthesizeNeverFailsForNonEmptyText(t *testing.T) {
	responses := []int{http.StatusOK, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusServiceUnavailable}
	for _, status := range responses {
		status := status
		f := newFixture(t, "key", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			if status == http.StatusOK {
				_, _ = w.Write([]byte("ID3audio"))
			}
		}, time.Second)
		for _, text := range []string{"a", "hello", strings.Repeat("long ", 200), "ünïcödé ✓"} {
			res := f.client.Synthesize(context.Background(), text, "")
			assert.NotEqual(t, generation.StatusFailed, res.Status, "status %d text %q", status, text)
			assert.NotEmpty(t, res.ArtifactURL)
		}
	}
}

func TestSynthesizeEmptyTextFails(t *testing.T) {
	f := newFixture(t, "key", func(w http.ResponseWriter, _ *http.Request) {}, time.Second)
	res := f.client.Synthesize(context.Background(), "   ", "")
	assert.Equal(t, generation.StatusFailed, res.Status)
	assert.Equal(t, generation.ErrorKindValidation, res.ErrorKind)
	assert.Zero(t, f.calls.Load())
}

func TestSynthesizeRepeatedTextGetsFreshArtifacts(t *testing.T) {
	f := newFixture(t, "", nil, time.Second)
	a := f.client.Synthesize(context.Background(), "same words", "v")
	b := f.client.Synthesize(context.Background(), "same words", "v")
	assert.NotEqual(t, a.ArtifactURL, b.ArtifactURL)
}

func TestResolveModes(t *testing.T) {
	s, err := Resolve("", ElevenLabsConfig{})
	require.NoError(t, err)
	assert.Nil(t, s.Provider)

	s, err = Resolve("elevenlabs", ElevenLabsConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ElevenLabsName, s.Provider.Name())

	s, err = Resolve("mock", ElevenLabsConfig{})
	require.NoError(t, err)
	assert.Equal(t, MockName, s.Provider.Name())

	_, err = Resolve("kokoro", ElevenLabsConfig{})
	assert.Error(t, err)
}

func TestListVoices(t *testing.T) {
	f := newFixture(t, "key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/voices", r.URL.Path)
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"b","name":"Bella"},{"voice_id":"a","name":"adam"},{"voice_id":"","name":"ghost"}]}`))
	}, time.Second)

	voices, err := f.client.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, "a", voices[0].VoiceID)
	assert.Equal(t, "b", voices[1].VoiceID)
}

func TestSynthesizeSweepsExpiredArtifacts(t *testing.T) {
	f := newFixture(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, time.Second)

	stale := filepath.Join(f.store.Dir(), "audio_0123456789ab_1-1.wav")
	other := filepath.Join(f.store.Dir(), "notes.txt")
	old := time.Now().Add(-2 * time.Hour)
	for _, p := range []string{stale, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
		require.NoError(t, os.Chtimes(p, old, old))
	}

	res := f.client.Synthesize(context.Background(), "hello", "")
	assert.Equal(t, generation.StatusFallback, res.Status)

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "expired artifact should be swept")
	_, err = os.Stat(other)
	assert.NoError(t, err, "non-artifact files are left alone")
	assert.Equal(t, int64(1), f.swept.Load())
	artifactPath(t, f.store, res.ArtifactURL)
}

func TestElevenLabsRejectsOversizedAudio(t *testing.T) {
	const limit = 16
	cases := []struct {
		name string
		size int
		ok   bool
	}{
		{"at limit", limit, true},
		{"over limit", limit + 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "audio/mpeg")
				_, _ = w.Write([]byte(strings.Repeat("a", tc.size)))
			}))
			defer srv.Close()

			p := NewElevenLabsProvider(ElevenLabsConfig{APIKey: "key", BaseURL: srv.URL, MaxAudioBytes: limit})
			audio, err := p.Synthesize(context.Background(), "hello", "voice-x")
			if tc.ok {
				require.NoError(t, err)
				assert.Len(t, audio, tc.size)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, generation.ErrProviderUnavailable)
			assert.Nil(t, audio)
		})
	}
}
