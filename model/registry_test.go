package model

import (
	"context"
	"errors"
	"testing"
)

type nullModel struct {
	cfg Config
}

func (m *nullModel) Name() string { return "null" }

func (m *nullModel) Load(ctx context.Context) error { return nil }

func (m *nullModel) Unload() error { return nil }

func (m *nullModel) Capabilities() Capabilities { return Capabilities{} }
func (m *nullModel) Transcribe(ctx context.Context, pcm []byte, opts Options) (*Output, error) {
	return &Output{ModelName: m.Name()}, nil
}

func TestRegistryNewConstructsRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register("null", func(cfg Config) (Model, error) {
		return &nullModel{cfg: cfg}, nil
	})

	m, err := r.New("null", Config{ModelPath: "/tmp/weights.bin"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.Name() != "null" {
		t.Errorf("constructed model named %q, want null", m.Name())
	}
	if got := m.(*nullModel).cfg.ModelPath; got != "/tmp/weights.bin" {
		t.Errorf("config not passed through, got %q", got)
	}
}

func TestRegistryNewUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.New("ghost", Config{})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("New returned %v, want ErrUnknownModel", err)
	}
}

func TestRegistryAvailableSorted(t *testing.T) {
	r := NewRegistry()
	factory := func(cfg Config) (Model, error) { return &nullModel{}, nil }
	r.Register("whisper", factory)
	r.Register("openai", factory)
	r.Register("assembly", factory)

	got := r.Available()
	want := []string{"assembly", "openai", "whisper"}
	if len(got) != len(want) {
		t.Fatalf("Available returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Available returned %v, want %v", got, want)
		}
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register("null", func(cfg Config) (Model, error) {
		return nil, errors.New("old factory")
	})
	r.Register("null", func(cfg Config) (Model, error) {
		return &nullModel{}, nil
	})

	if _, err := r.New("null", Config{}); err != nil {
		t.Fatalf("replaced factory not used: %v", err)
	}
}
