package scribe

import (
	"context"
	"errors"
	"time"
)

// Segment is one transcribed span on the stream's absolute timeline. Start
// and End are seconds since the stream began and are monotonically
// non-decreasing within a tag.
type Segment struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SourceTag string  `json:"source_tag"`
}

// Sink receives segments for one stream, in order. Returning ErrSinkClosed
// tells the pipeline its consumer is gone, which unwinds the stream exactly
// like an explicit stop; any other error is logged and delivery continues.
type Sink func(ctx context.Context, seg Segment) error

// ErrSinkClosed signals that the segment consumer has disconnected.
var ErrSinkClosed = errors.New("output sink closed")

// ErrNoModel is returned by Start when no transcription model is loaded.
var ErrNoModel = errors.New("no transcription model loaded")

// ErrNotFound is returned by Stop for a tag with no running stream.
var ErrNotFound = errors.New("transcription stream not found")

// StreamParams carries per-stream request parameters, passed through to the
// transcription model unchanged.
type StreamParams struct {
	// FilePath is required for file sources.
	FilePath string
	// Language hints the transcription language; empty means the service
	// default.
	Language string
	// InitialPrompt primes the model with context.
	InitialPrompt string
}

// Configuration for the transcription service
type Config struct {
	// WindowSeconds of buffered audio trigger one transcription dispatch.
	WindowSeconds float64

	// StopGrace bounds how long stop paths wait for pipelines and
	// producers to acknowledge cancellation.
	StopGrace time.Duration

	// HTTPAddr enables the HTTP/WebSocket control surface when non-empty.
	HTTPAddr string

	// SpoolDir enables the spool watcher when non-empty: WAV files
	// created there are transcribed automatically.
	SpoolDir string

	// DefaultLanguage is used when a stream request names none.
	DefaultLanguage string
}

func (c *Config) applyDefaults() {
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 5
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 5 * time.Second
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
}
