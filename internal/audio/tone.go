package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// Tone is a constant sine wave.
type Tone struct {
	Frequency float64
	Amplitude float64 // 0..1 of full scale
	Format    Format
}

// PCM renders d of the tone as PCM16LE. Every channel carries the same
// sample.
func (t Tone) PCM(d time.Duration) ([]byte, error) {
	if err := t.Format.validate(); err != nil {
		return nil, err
	}
	if t.Frequency <= 0 {
		return nil, errors.New("audio: tone frequency must be positive")
	}
	if d <= 0 {
		return nil, errors.New("audio: tone duration must be positive")
	}
	amp := math.Max(0, math.Min(1, t.Amplitude)) * math.MaxInt16

	frames := int(d.Seconds() * float64(t.Format.SampleRate))
	out := make([]byte, frames*t.Format.Channels*2)
	step := 2 * math.Pi * t.Frequency / float64(t.Format.SampleRate)
	off := 0
	for i := 0; i < frames; i++ {
		s := uint16(int16(math.Round(amp * math.Sin(step*float64(i)))))
		for c := 0; c < t.Format.Channels; c++ {
			binary.LittleEndian.PutUint16(out[off:], s)
			off += 2
		}
	}
	return out, nil
}

// WAV renders d of the tone as a complete WAV file.
func (t Tone) WAV(d time.Duration) ([]byte, error) {
	pcm, err := t.PCM(d)
	if err != nil {
		return nil, err
	}
	return EncodeWAV(pcm, t.Format)
}
