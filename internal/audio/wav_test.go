package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 8)
	wav, err := EncodeWAV(pcm, Format{SampleRate: 22050, Channels: 1})
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("unexpected chunk ids: %q", wav[:40])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 22050 {
		t.Fatalf("sample rate = %d, want 22050", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
}

func TestEncodeWAVRejectsPartialFrames(t *testing.T) {
	if _, err := EncodeWAV([]byte{1, 2, 3}, Format{SampleRate: 8000, Channels: 1}); err == nil {
		t.Fatalf("expected error for odd pcm length")
	}
}

func TestTonePCM(t *testing.T) {
	tone := Tone{Frequency: 440, Amplitude: 0.3, Format: Format{SampleRate: 22050, Channels: 1}}
	pcm, err := tone.PCM(2 * time.Second)
	if err != nil {
		t.Fatalf("PCM() error = %v", err)
	}
	if len(pcm) != 2*22050*2 {
		t.Fatalf("len = %d, want %d", len(pcm), 2*22050*2)
	}

	peak := 0
	for i := 0; i < len(pcm); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	want := int(math.Round(0.3 * math.MaxInt16))
	if peak > want || peak < want-50 {
		t.Fatalf("peak = %d, want about %d", peak, want)
	}
}

func TestToneRejectsBadInput(t *testing.T) {
	f := Format{SampleRate: 22050, Channels: 1}
	if _, err := (Tone{Frequency: 0, Amplitude: 0.3, Format: f}).PCM(time.Second); err == nil {
		t.Fatalf("expected frequency error")
	}
	if _, err := (Tone{Frequency: 440, Amplitude: 0.3, Format: f}).PCM(0); err == nil {
		t.Fatalf("expected duration error")
	}
}
