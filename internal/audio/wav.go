// Package audio holds the small amount of raw PCM handling the placeholder
// synthesizer needs: tone generation and WAV framing.
package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	bitsPerSample = 16
	formatPCM     = 1
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	FmtID         [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataID        [4]byte
	DataSize      uint32
}

// Format describes a PCM16LE stream.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) validate() error {
	if f.SampleRate <= 0 {
		return errors.New("audio: sample rate must be positive")
	}
	if f.Channels <= 0 {
		return errors.New("audio: channel count must be positive")
	}
	return nil
}

// EncodeWAV wraps raw PCM16LE bytes in a WAV container.
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := WriteWAV(&buf, pcm, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAV writes raw PCM16LE bytes to out as a WAV stream.
func WriteWAV(out io.Writer, pcm []byte, f Format) error {
	if err := f.validate(); err != nil {
		return err
	}
	if len(pcm)%(f.Channels*bitsPerSample/8) != 0 {
		return errors.New("audio: pcm length is not a whole number of frames")
	}

	blockAlign := f.Channels * bitsPerSample / 8
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		FmtID:         [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   formatPCM,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.SampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: bitsPerSample,
		DataID:        [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}

	w := bufio.NewWriter(out)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}
