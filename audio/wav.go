package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	wav "github.com/youpy/go-wav"
)

// ErrFormat is returned when a WAV file does not match the fixed capture
// format. Wrapped errors carry the specific mismatch.
var ErrFormat = errors.New("unsupported wav format")

// ValidateFormat checks a WAV header against the fixed contract: mono,
// 16-bit PCM, 16 kHz. Any mismatch is fatal before a single chunk is read.
func ValidateFormat(f *wav.WavFormat) error {
	if f.AudioFormat != wav.AudioFormatPCM {
		return fmt.Errorf("%w: audio format %d, want PCM", ErrFormat, f.AudioFormat)
	}
	if f.NumChannels != Channels {
		return fmt.Errorf("%w: %d channels, want %d", ErrFormat, f.NumChannels, Channels)
	}
	if f.BitsPerSample != BitsPerSample {
		return fmt.Errorf("%w: %d bits per sample, want %d", ErrFormat, f.BitsPerSample, BitsPerSample)
	}
	if f.SampleRate != SampleRate {
		return fmt.Errorf("%w: sample rate %d, want %d", ErrFormat, f.SampleRate, SampleRate)
	}
	return nil
}

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// WAVBytes wraps raw fixed-format PCM in a RIFF/WAVE container. Hosted
// transcription services take container files, not bare sample data.
func WAVBytes(pcm []byte) []byte {
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(len(pcm)) + 36,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      BytesPerSecond,
		BlockAlign:    Channels * BytesPerSample,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	binary.Write(&buf, binary.LittleEndian, header)
	buf.Write(pcm)
	return buf.Bytes()
}

// SamplesToBytes packs go-wav mono samples into little-endian PCM bytes.
func SamplesToBytes(samples []wav.Sample) []byte {
	out := make([]byte, 0, len(samples)*BytesPerSample)
	for _, s := range samples {
		v := int16(s.Values[0])
		out = append(out, byte(v), byte(v>>8))
	}
	return out
}
