//go:build whisper_cpp

package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/bosley/murmur/audio"
)

// whisperModel runs transcription locally through whisper.cpp. The bindings
// are not safe for concurrent use of one model, so calls are serialized.
type whisperModel struct {
	mu      sync.Mutex
	path    string
	threads uint
	model   whisperpkg.Model
}

// NewWhisper builds the local whisper.cpp capability. Weights are loaded
// later, by Load.
func NewWhisper(cfg Config) (Model, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("whisper: model path required")
	}
	return &whisperModel{
		path:    cfg.ModelPath,
		threads: uint(runtime.NumCPU()),
	}, nil
}

func (w *whisperModel) Name() string { return "whisper" }

func (w *whisperModel) Load(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		return nil
	}
	m, err := whisperpkg.New(w.path)
	if err != nil {
		return fmt.Errorf("whisper: load model %q: %w", w.path, err)
	}
	w.model = m
	slog.Info("Whisper model loaded", "path", w.path, "threads", w.threads)
	return nil
}

func (w *whisperModel) Unload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		w.model.Close()
		w.model = nil
		slog.Info("Whisper model unloaded", "path", w.path)
	}
	return nil
}

func (w *whisperModel) Transcribe(ctx context.Context, pcm []byte, opts Options) (*Output, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil, ErrNotLoaded
	}

	samples := audio.PCM16ToFloat32(pcm)

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	wctx.SetThreads(w.threads)
	if opts.Language != "" {
		_ = wctx.SetLanguage(opts.Language)
	}
	if opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(opts.InitialPrompt)
	}
	wctx.SetTokenTimestamps(true)
	wctx.SetSplitOnWord(true)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []Segment
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("Whisper segment read failed", "error", err)
			break
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:  text,
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
		})
	}

	lang := wctx.Language()
	if lang == "" {
		lang = wctx.DetectedLanguage()
	}

	return &Output{
		Segments:      segments,
		ModelName:     w.Name(),
		Language:      lang,
		TotalDuration: audio.Duration(len(pcm)),
	}, nil
}

func (w *whisperModel) Capabilities() Capabilities {
	return Capabilities{
		RealtimeStreaming:     false,
		SupportedLanguages:    []string{"auto", "en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko", "uk", "nl", "pl", "tr"},
		MaxAudioLengthSeconds: 30,
		Description:           "Local whisper.cpp transcription; streaming is provided by the windowing layer.",
	}
}
