package audio

import (
	"bytes"
	"errors"
	"io"
	"testing"

	wav "github.com/youpy/go-wav"
)

func validFormat() *wav.WavFormat {
	return &wav.WavFormat{
		AudioFormat:   wav.AudioFormatPCM,
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      BytesPerSecond,
		BlockAlign:    Channels * BytesPerSample,
		BitsPerSample: BitsPerSample,
	}
}

func TestValidateFormatAccepts(t *testing.T) {
	if err := ValidateFormat(validFormat()); err != nil {
		t.Fatalf("ValidateFormat rejected the fixed format: %v", err)
	}
}

func TestValidateFormatRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(f *wav.WavFormat)
	}{
		{"non-pcm", func(f *wav.WavFormat) { f.AudioFormat = wav.AudioFormatIEEEFloat }},
		{"stereo", func(f *wav.WavFormat) { f.NumChannels = 2 }},
		{"8-bit", func(f *wav.WavFormat) { f.BitsPerSample = 8 }},
		{"44100Hz", func(f *wav.WavFormat) { f.SampleRate = 44100 }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := validFormat()
			c.mutate(f)
			err := ValidateFormat(f)
			if err == nil {
				t.Fatal("ValidateFormat accepted a mismatched format")
			}
			if !errors.Is(err, ErrFormat) {
				t.Errorf("error %v does not wrap ErrFormat", err)
			}
		})
	}
}

func TestWAVBytesRoundTrip(t *testing.T) {
	pcm := Int16ToBytes([]int16{0, 100, -100, 32767, -32768})

	container := WAVBytes(pcm)
	if len(container) != 44+len(pcm) {
		t.Fatalf("container is %d bytes, want %d", len(container), 44+len(pcm))
	}

	reader := wav.NewReader(bytes.NewReader(container))
	format, err := reader.Format()
	if err != nil {
		t.Fatalf("failed to parse container: %v", err)
	}
	if err := ValidateFormat(format); err != nil {
		t.Fatalf("container format fails validation: %v", err)
	}

	samples, err := reader.ReadSamples(uint32(len(pcm) / BytesPerSample))
	if err != nil && err != io.EOF {
		t.Fatalf("failed to read samples back: %v", err)
	}
	if got := SamplesToBytes(samples); !bytes.Equal(got, pcm) {
		t.Error("PCM payload did not survive the container round trip")
	}
}
