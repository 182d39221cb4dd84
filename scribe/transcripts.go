package scribe

import "sync"

// transcriptStore keeps the per-tag segment history for the control surface.
// History survives a stream's end so spool transcriptions stay retrievable.
type transcriptStore struct {
	mu    sync.RWMutex
	byTag map[string][]Segment
}

func newTranscriptStore() *transcriptStore {
	return &transcriptStore{byTag: make(map[string][]Segment)}
}

func (t *transcriptStore) append(seg Segment) {
	t.mu.Lock()
	t.byTag[seg.SourceTag] = append(t.byTag[seg.SourceTag], seg)
	t.mu.Unlock()
}

func (t *transcriptStore) get(tag string) []Segment {
	t.mu.RLock()
	defer t.mu.RUnlock()

	segments := t.byTag[tag]
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}
