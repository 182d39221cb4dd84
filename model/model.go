package model

import (
	"context"
	"errors"
)

var (
	ErrUnknownModel = errors.New("unknown transcription model")
	ErrNotLoaded    = errors.New("transcription model not loaded")
)

// Segment is one span of transcribed text. Start and End are seconds local to
// the audio handed to Transcribe; the windowing layer reconciles them onto the
// stream's absolute timeline.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Output is the full result of one single-shot transcription.
type Output struct {
	Segments      []Segment `json:"segments"`
	ModelName     string    `json:"model_name"`
	Language      string    `json:"language"`
	TotalDuration float64   `json:"total_duration"`
}

// Capabilities describes what a transcription model can do, queryable without
// loading it.
type Capabilities struct {
	RealtimeStreaming     bool     `json:"realtime_streaming"`
	SupportedLanguages    []string `json:"supported_languages"`
	MaxAudioLengthSeconds int      `json:"max_audio_length_seconds,omitempty"`
	Description           string   `json:"description"`
}

// Options are per-call transcription parameters, passed through unchanged
// from the stream request.
type Options struct {
	Language      string
	InitialPrompt string
}

// Model is the transcription capability contract. Input to Transcribe is
// mono 16-bit PCM at the fixed sample rate. Load and Unload are idempotent;
// implementations must tolerate Unload on a model that never loaded.
type Model interface {
	Name() string
	Load(ctx context.Context) error
	Unload() error
	Transcribe(ctx context.Context, pcm []byte, opts Options) (*Output, error)
	Capabilities() Capabilities
}
