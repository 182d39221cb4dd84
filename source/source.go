package source

import (
	"context"
	"errors"
)

// Chunk is one fixed-format PCM chunk handed from a producer to its pipeline.
// A producer that hits a capture fault mid-stream sends a Chunk carrying Err
// so the failure is visible to the consumer instead of the channel going
// silent.
type Chunk struct {
	Data []byte
	Err  error
}

// Producer captures audio from one source and sends fixed-format PCM chunks
// on out until ctx is cancelled or the source ends on its own.
//
// Run must call ready exactly once: with nil once the source is open and
// capturing, or with the fatal setup error just before returning it. This is
// how device-open and format failures surface synchronously to the caller of
// Registry.Start. Implementations must not close out; the registry owns the
// channel. A nil return means cancellation or natural end of the source
// (file EOF); a non-nil return is a capture fault that the registry hands to
// the consumer as a final error chunk.
type Producer interface {
	Run(ctx context.Context, ready func(error), out chan<- Chunk) error
}

// Type names a producer variant as accepted by the control surface.
type Type string

const (
	TypeMicrophone Type = "microphone"
	TypeFile       Type = "file"
	TypeLoopback   Type = "loopback"
)

var (
	ErrTagActive   = errors.New("source tag already active")
	ErrNotFound    = errors.New("source tag not found")
	ErrUnknownType = errors.New("unknown source type")
)

// Params carries per-variant start parameters.
type Params struct {
	// FilePath is required for TypeFile.
	FilePath string
}

// New constructs a producer for the given variant. Device probing and format
// validation happen inside Run, on the pipeline's own lifecycle, except the
// file variant which validates eagerly so a bad file fails the start call.
func New(t Type, p Params) (Producer, error) {
	switch t {
	case TypeMicrophone:
		return NewMicrophone(), nil
	case TypeFile:
		return NewFilePlayer(p.FilePath)
	case TypeLoopback:
		return NewLoopback(), nil
	default:
		return nil, ErrUnknownType
	}
}
