package scribe

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/bosley/murmur/audio"
	"github.com/bosley/murmur/model"
	"github.com/bosley/murmur/source"
)

// scriptedModel is a Model whose Transcribe returns one segment spanning the
// audio it was handed, optionally failing on selected calls.
type scriptedModel struct {
	name    string
	mu      sync.Mutex
	calls   []int // pcm byte length per call
	failOn  map[int]bool
	loaded  bool
	unloads int
	loadErr error
	onEvent func(event string)
}

func (m *scriptedModel) Name() string {
	if m.name == "" {
		return "scripted"
	}
	return m.name
}

func (m *scriptedModel) Load(ctx context.Context) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()
	if m.onEvent != nil {
		m.onEvent("load:" + m.Name())
	}
	return nil
}

func (m *scriptedModel) Unload() error {
	m.mu.Lock()
	m.loaded = false
	m.unloads++
	m.mu.Unlock()
	if m.onEvent != nil {
		m.onEvent("unload:" + m.Name())
	}
	return nil
}

func (m *scriptedModel) Transcribe(ctx context.Context, pcm []byte, opts model.Options) (*model.Output, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, len(pcm))
	fail := m.failOn[call]
	m.mu.Unlock()

	if fail {
		return nil, errors.New("backend unavailable")
	}
	return &model.Output{
		Segments: []model.Segment{
			{Text: "hello", Start: 0, End: audio.Duration(len(pcm))},
		},
		ModelName:     m.Name(),
		TotalDuration: audio.Duration(len(pcm)),
	}, nil
}

func (m *scriptedModel) Capabilities() model.Capabilities {
	return model.Capabilities{Description: "test model"}
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// feedChunks sends n nominal chunks and closes the channel.
func feedChunks(n int) <-chan source.Chunk {
	ch := make(chan source.Chunk, n)
	for i := 0; i < n; i++ {
		ch <- source.Chunk{Data: make([]byte, audio.ChunkBytes)}
	}
	close(ch)
	return ch
}

type segmentCollector struct {
	mu       sync.Mutex
	segments []Segment
	err      error
}

func (c *segmentCollector) sink() Sink {
	return func(ctx context.Context, seg Segment) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.err != nil {
			return c.err
		}
		c.segments = append(c.segments, seg)
		return nil
	}
}

func (c *segmentCollector) all() []Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

func TestTranscribeStreamWindowsAndTailFlush(t *testing.T) {
	m := &scriptedModel{}
	collector := &segmentCollector{}

	// 10 chunks of 0.064s against a 0.25s window: dispatch fires after every
	// 4th chunk, and the 2-chunk remainder flushes when the channel closes.
	err := TranscribeStream(context.Background(), m, feedChunks(10), "clip", 0.25, model.Options{}, collector.sink())
	if err != nil {
		t.Fatalf("TranscribeStream returned %v", err)
	}

	if got := m.callCount(); got != 3 {
		t.Fatalf("model called %d times, want 3", got)
	}

	segments := collector.all()
	if len(segments) != 3 {
		t.Fatalf("received %d segments, want 3", len(segments))
	}

	// Window-local timestamps must be shifted by each window's stream origin.
	windowSpan := audio.Duration(4 * audio.ChunkBytes)
	wantStarts := []float64{0, windowSpan, 2 * windowSpan}
	for i, seg := range segments {
		if math.Abs(seg.Start-wantStarts[i]) > 1e-9 {
			t.Errorf("segment %d starts at %f, want %f", i, seg.Start, wantStarts[i])
		}
		if seg.End < seg.Start {
			t.Errorf("segment %d ends before it starts", i)
		}
		if seg.SourceTag != "clip" {
			t.Errorf("segment %d tagged %q, want clip", i, seg.SourceTag)
		}
	}

	// Tail flush covers the short remainder.
	tail := segments[2]
	wantTail := audio.Duration(2 * audio.ChunkBytes)
	if math.Abs((tail.End-tail.Start)-wantTail) > 1e-9 {
		t.Errorf("tail segment spans %f seconds, want %f", tail.End-tail.Start, wantTail)
	}
}

func TestTranscribeStreamMonotonicTimestamps(t *testing.T) {
	m := &scriptedModel{}
	collector := &segmentCollector{}

	err := TranscribeStream(context.Background(), m, feedChunks(32), "mic", 0.25, model.Options{}, collector.sink())
	if err != nil {
		t.Fatalf("TranscribeStream returned %v", err)
	}

	var prev float64
	for i, seg := range collector.all() {
		if seg.Start < prev {
			t.Fatalf("segment %d start %f regressed below %f", i, seg.Start, prev)
		}
		prev = seg.Start
	}
}

func TestTranscribeStreamSkipsFailedWindow(t *testing.T) {
	m := &scriptedModel{failOn: map[int]bool{1: true}}
	collector := &segmentCollector{}

	err := TranscribeStream(context.Background(), m, feedChunks(12), "mic", 0.25, model.Options{}, collector.sink())
	if err != nil {
		t.Fatalf("a failed window must not kill the stream, got %v", err)
	}

	if got := m.callCount(); got != 3 {
		t.Fatalf("model called %d times, want 3", got)
	}

	// The failed middle window is skipped, never retried: the third window's
	// origin still reflects the audio the failed window consumed.
	segments := collector.all()
	if len(segments) != 2 {
		t.Fatalf("received %d segments, want 2", len(segments))
	}
	windowSpan := audio.Duration(4 * audio.ChunkBytes)
	if math.Abs(segments[1].Start-2*windowSpan) > 1e-9 {
		t.Errorf("post-failure segment starts at %f, want %f", segments[1].Start, 2*windowSpan)
	}
}

func TestTranscribeStreamStopsWhenSinkCloses(t *testing.T) {
	m := &scriptedModel{}
	collector := &segmentCollector{err: ErrSinkClosed}

	err := TranscribeStream(context.Background(), m, feedChunks(8), "mic", 0.25, model.Options{}, collector.sink())
	if !errors.Is(err, ErrSinkClosed) {
		t.Fatalf("TranscribeStream returned %v, want ErrSinkClosed", err)
	}
}

func TestTranscribeStreamPropagatesProducerError(t *testing.T) {
	m := &scriptedModel{}
	captureErr := errors.New("device unplugged")

	ch := make(chan source.Chunk, 2)
	ch <- source.Chunk{Data: make([]byte, audio.ChunkBytes)}
	ch <- source.Chunk{Err: captureErr}
	close(ch)

	err := TranscribeStream(context.Background(), m, ch, "mic", 0.25, model.Options{}, (&segmentCollector{}).sink())
	if !errors.Is(err, captureErr) {
		t.Fatalf("TranscribeStream returned %v, want the producer error", err)
	}
}

func TestTranscribeStreamCancellation(t *testing.T) {
	m := &scriptedModel{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan source.Chunk)
	err := TranscribeStream(ctx, m, ch, "mic", 0.25, model.Options{}, (&segmentCollector{}).sink())
	if err != nil {
		t.Fatalf("cancelled stream returned %v, want nil", err)
	}
}
