package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bosley/murmur/audio"
)

// openaiModel transcribes through the OpenAI audio API. There are no local
// weights; Load just constructs the client, and Unload drops it.
type openaiModel struct {
	mu      sync.Mutex
	apiKey  string
	variant string
	client  *openai.Client
}

// NewOpenAI builds the hosted transcription capability.
func NewOpenAI(cfg Config) (Model, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key required")
	}
	variant := cfg.Variant
	if variant == "" {
		variant = openai.Whisper1
	}
	return &openaiModel{apiKey: cfg.APIKey, variant: variant}, nil
}

func (m *openaiModel) Name() string { return "openai" }

func (m *openaiModel) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		m.client = openai.NewClient(m.apiKey)
	}
	return nil
}

func (m *openaiModel) Unload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = nil
	return nil
}

func (m *openaiModel) Transcribe(ctx context.Context, pcm []byte, opts Options) (*Output, error) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return nil, ErrNotLoaded
	}

	req := openai.AudioRequest{
		Model:    m.variant,
		FilePath: "window.wav",
		Reader:   bytes.NewReader(audio.WAVBytes(pcm)),
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: opts.Language,
		Prompt:   opts.InitialPrompt,
	}

	resp, err := client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: transcription request: %w", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, Segment{
			Text:  seg.Text,
			Start: seg.Start,
			End:   seg.End,
		})
	}

	return &Output{
		Segments:      segments,
		ModelName:     m.Name(),
		Language:      resp.Language,
		TotalDuration: audio.Duration(len(pcm)),
	}, nil
}

func (m *openaiModel) Capabilities() Capabilities {
	return Capabilities{
		RealtimeStreaming:     false,
		SupportedLanguages:    []string{"auto", "en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko", "uk"},
		MaxAudioLengthSeconds: 25 * 60,
		Description:           "Hosted OpenAI audio transcription; streaming is provided by the windowing layer.",
	}
}
