package source

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const chunkBacklog = 32

// Handle is the ownership record for one running producer: its chunk channel,
// its cancellation, and a done signal that closes once the producer goroutine
// has fully unwound.
type Handle struct {
	Tag     string
	ID      uuid.UUID
	Started time.Time

	chunks chan Chunk
	cancel context.CancelFunc
	done   chan struct{}
}

// Chunks returns the producer's output. The channel closes when capture ends,
// whether by stop request, natural end of the source, or producer failure. A
// failure is delivered as a final Chunk carrying Err before the close.
func (h *Handle) Chunks() <-chan Chunk { return h.chunks }

// Done closes once the producer goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Registry tracks the active producers by tag, at most one per tag. Producers
// that end on their own remove themselves so the active set never holds a
// stale handle.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
	grace   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates a registry. grace bounds how long Stop and Close wait
// for a producer to acknowledge cancellation.
func NewRegistry(grace time.Duration) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		handles: make(map[string]*Handle),
		grace:   grace,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches p under tag. It fails with ErrTagActive if the tag already
// has a running producer, and surfaces the producer's setup error (missing
// device, bad file) synchronously without leaving a handle behind.
func (r *Registry) Start(tag string, p Producer) (*Handle, error) {
	r.mu.Lock()
	if _, ok := r.handles[tag]; ok {
		r.mu.Unlock()
		return nil, ErrTagActive
	}

	ctx, cancel := context.WithCancel(r.ctx)
	h := &Handle{
		Tag:     tag,
		ID:      uuid.New(),
		Started: time.Now(),
		chunks:  make(chan Chunk, chunkBacklog),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.handles[tag] = h
	r.mu.Unlock()

	ready := make(chan error, 1)
	go func() {
		err := p.Run(ctx, func(e error) { ready <- e }, h.chunks)
		if err != nil && ctx.Err() == nil {
			slog.Error("source producer failed", "tag", tag, "error", err)
			// Hand the failure to the consumer; if nobody is draining
			// anymore the pipeline is already gone and the chunk is moot.
			select {
			case h.chunks <- Chunk{Err: err}:
			default:
			}
		}
		close(h.chunks)
		r.remove(tag, h)
		close(h.done)
	}()

	if err := <-ready; err != nil {
		cancel()
		<-h.done
		return nil, err
	}

	slog.Info("source producer started", "tag", tag, "handleID", h.ID)
	return h, nil
}

// Stop cancels the producer for tag and waits up to the grace period for it
// to unwind. Stopping a tag that is not active returns ErrNotFound; callers
// treating that as a no-op is the expected idiom.
func (r *Registry) Stop(tag string) error {
	r.mu.Lock()
	h, ok := r.handles[tag]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	h.cancel()
	select {
	case <-h.done:
	case <-time.After(r.grace):
		slog.Warn("source producer did not stop within grace period",
			"tag", tag,
			"grace", r.grace)
		r.remove(tag, h)
	}

	slog.Debug("source producer stopped", "tag", tag)
	return nil
}

// ListActive returns the tags with running producers, sorted.
func (r *Registry) ListActive() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]string, 0, len(r.handles))
	for tag := range r.handles {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Close cancels every producer and waits, bounded by the grace period, for
// them to unwind.
func (r *Registry) Close() {
	r.cancel()

	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	deadline := time.After(r.grace)
	for _, h := range handles {
		select {
		case <-h.done:
		case <-deadline:
			slog.Warn("source registry closed with producers still running",
				"tag", h.Tag)
			return
		}
	}
}

func (r *Registry) remove(tag string, h *Handle) {
	r.mu.Lock()
	if r.handles[tag] == h {
		delete(r.handles, tag)
	}
	r.mu.Unlock()
}
