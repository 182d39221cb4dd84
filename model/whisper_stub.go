//go:build !whisper_cpp

package model

import (
	"context"
	"errors"

	"github.com/bosley/murmur/audio"
)

// Default build without cgo: the whisper factory registers but produces no
// text, so the rest of the service is exercisable without whisper.cpp. Build
// with -tags whisper_cpp for the real capability.
type whisperStub struct{}

func NewWhisper(cfg Config) (Model, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("whisper: model path required")
	}
	return &whisperStub{}, nil
}

func (w *whisperStub) Name() string { return "whisper" }

func (w *whisperStub) Load(ctx context.Context) error { return nil }

func (w *whisperStub) Unload() error { return nil }

func (w *whisperStub) Transcribe(ctx context.Context, pcm []byte, opts Options) (*Output, error) {
	return &Output{
		ModelName:     w.Name(),
		Language:      opts.Language,
		TotalDuration: audio.Duration(len(pcm)),
	}, nil
}

func (w *whisperStub) Capabilities() Capabilities {
	return Capabilities{
		SupportedLanguages: []string{"auto"},
		Description:        "whisper.cpp support not compiled in (build with -tags whisper_cpp)",
	}
}
