package source

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeProducer is a scriptable Producer for registry tests.
type fakeProducer struct {
	setupErr error
	chunks   [][]byte
	runErr   error
	block    bool
}

func (p *fakeProducer) Run(ctx context.Context, ready func(error), out chan<- Chunk) error {
	if p.setupErr != nil {
		ready(p.setupErr)
		return p.setupErr
	}
	ready(nil)

	for _, data := range p.chunks {
		select {
		case out <- Chunk{Data: data}:
		case <-ctx.Done():
			return nil
		}
	}

	if p.block {
		<-ctx.Done()
		return nil
	}
	return p.runErr
}

func newTestRegistry() *Registry {
	return NewRegistry(2 * time.Second)
}

func TestStartRejectsDuplicateTag(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	if _, err := r.Start("mic", &fakeProducer{block: true}); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	_, err := r.Start("mic", &fakeProducer{block: true})
	if !errors.Is(err, ErrTagActive) {
		t.Fatalf("duplicate start returned %v, want ErrTagActive", err)
	}
}

func TestStartSurfacesSetupError(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	setupErr := errors.New("no such device")
	_, err := r.Start("mic", &fakeProducer{setupErr: setupErr})
	if !errors.Is(err, setupErr) {
		t.Fatalf("start returned %v, want the setup error", err)
	}

	// A failed start must leave nothing behind.
	if tags := r.ListActive(); len(tags) != 0 {
		t.Errorf("active tags after failed start: %v", tags)
	}
	if _, err := r.Start("mic", &fakeProducer{block: true}); err != nil {
		t.Errorf("tag not reusable after failed start: %v", err)
	}
}

func TestNaturalEndRemovesTag(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	h, err := r.Start("clip", &fakeProducer{chunks: [][]byte{{1, 2}, {3, 4}}})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var got int
	for chunk := range h.Chunks() {
		if chunk.Err != nil {
			t.Fatalf("unexpected error chunk: %v", chunk.Err)
		}
		got++
	}
	if got != 2 {
		t.Errorf("received %d chunks, want 2", got)
	}

	<-h.Done()
	if tags := r.ListActive(); len(tags) != 0 {
		t.Errorf("active tags after natural end: %v", tags)
	}
	if err := r.Stop("clip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stop after natural end returned %v, want ErrNotFound", err)
	}
}

func TestProducerFailureDeliversErrorChunk(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	captureErr := errors.New("stream read failed")
	h, err := r.Start("mic", &fakeProducer{
		chunks: [][]byte{{1, 2}},
		runErr: captureErr,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var last Chunk
	for chunk := range h.Chunks() {
		last = chunk
	}
	if !errors.Is(last.Err, captureErr) {
		t.Fatalf("final chunk error = %v, want the capture error", last.Err)
	}

	<-h.Done()
	if tags := r.ListActive(); len(tags) != 0 {
		t.Errorf("active tags after producer failure: %v", tags)
	}
}

func TestStopCancelsBlockedProducer(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	if _, err := r.Start("mic", &fakeProducer{block: true}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	start := time.Now()
	if err := r.Stop("mic"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stop took %v, want prompt cancellation", elapsed)
	}

	if err := r.Stop("mic"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second stop returned %v, want ErrNotFound", err)
	}
}

func TestStopUnknownTag(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	if err := r.Stop("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stop returned %v, want ErrNotFound", err)
	}
}

func TestCloseStopsAllProducers(t *testing.T) {
	r := newTestRegistry()

	h1, err := r.Start("a", &fakeProducer{block: true})
	if err != nil {
		t.Fatalf("start a failed: %v", err)
	}
	h2, err := r.Start("b", &fakeProducer{block: true})
	if err != nil {
		t.Fatalf("start b failed: %v", err)
	}

	r.Close()

	select {
	case <-h1.Done():
	case <-time.After(time.Second):
		t.Error("producer a still running after close")
	}
	select {
	case <-h2.Done():
	case <-time.After(time.Second):
		t.Error("producer b still running after close")
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(Type("satellite"), Params{})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("New returned %v, want ErrUnknownType", err)
	}
}
