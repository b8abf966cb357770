// Package placeholder produces stand-in media when a provider cannot. Its
// operations never fail: the worst case is a record naming a fixed
// placeholder file.
package placeholder

import (
	"context"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ent0n29/solace/internal/artifact"
	"github.com/ent0n29/solace/internal/audio"
)

const (
	ToneFrequency  = 440.0
	ToneAmplitude  = 0.3
	ToneSampleRate = 22050

	minAudioDuration = 2 * time.Second
	maxAudioDuration = 60 * time.Second
	perCharDuration  = 50 * time.Millisecond

	fixedAudioName = "placeholder.wav"
	fixedVideoName = "placeholder.mp4"
)

// Saver is the part of the artifact store the synthesizer writes through.
type Saver interface {
	Save(ctx context.Context, kind artifact.Kind, ext, source string, data []byte) (artifact.Record, error)
	Copy(ctx context.Context, kind artifact.Kind, source, srcPath string) (artifact.Record, error)
}

type Config struct {
	// AudioPath is an optional stock clip copied instead of generating a tone.
	AudioPath string
	// VideoPaths are candidate stock clips; the first existing one is used.
	VideoPaths []string
}

type Synthesizer struct {
	store  Saver
	cfg    Config
	logger zerolog.Logger
}

func New(store Saver, cfg Config, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "placeholder").Logger(),
	}
}

// Audio returns a fresh audio artifact for text.
func (s *Synthesizer) Audio(ctx context.Context, text string) artifact.Record {
	if path := strings.TrimSpace(s.cfg.AudioPath); path != "" && regularFile(path) {
		rec, err := s.store.Copy(ctx, artifact.KindAudio, text, path)
		if err == nil {
			return rec
		}
		s.logger.Warn().Err(err).Str("path", path).Msg("stock audio copy failed, generating tone")
	}

	wav, err := audio.Tone{
		Frequency: ToneFrequency,
		Amplitude: ToneAmplitude,
		Format:    audio.Format{SampleRate: ToneSampleRate, Channels: 1},
	}.WAV(AudioDuration(text))
	if err != nil {
		s.logger.Error().Err(err).Msg("tone generation failed")
		return fixed(artifact.KindAudio, fixedAudioName)
	}
	rec, err := s.store.Save(ctx, artifact.KindAudio, "wav", text, wav)
	if err != nil {
		s.logger.Error().Err(err).Msg("placeholder audio could not be stored")
		return fixed(artifact.KindAudio, fixedAudioName)
	}
	return rec
}

// Video returns a fresh video artifact.
func (s *Synthesizer) Video(ctx context.Context) artifact.Record {
	for _, path := range s.cfg.VideoPaths {
		path = strings.TrimSpace(path)
		if path == "" || !regularFile(path) {
			continue
		}
		rec, err := s.store.Copy(ctx, artifact.KindVideo, "", path)
		if err == nil {
			return rec
		}
		s.logger.Warn().Err(err).Str("path", path).Msg("stock video copy failed")
	}

	rec, err := s.store.Save(ctx, artifact.KindVideo, "mp4", "", minimalMP4())
	if err != nil {
		s.logger.Error().Err(err).Msg("placeholder video could not be stored")
		return fixed(artifact.KindVideo, fixedVideoName)
	}
	return rec
}

// AudioDuration is max(2s, 50ms per character) capped at 60s.
func AudioDuration(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * perCharDuration
	if d < minAudioDuration {
		return minAudioDuration
	}
	if d > maxAudioDuration {
		return maxAudioDuration
	}
	return d
}

func fixed(kind artifact.Kind, name string) artifact.Record {
	return artifact.Record{Filename: name, Kind: kind, CreatedAt: time.Now().UTC()}
}

func regularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
