package scribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bosley/murmur/model"
	"github.com/bosley/murmur/source"
)

// Scribe orchestrates transcription: it owns the single loaded model, binds
// source producers to windowed pipelines, and supervises one independently
// cancellable pipeline per source tag.
type Scribe struct {
	config  Config
	models  *model.Registry
	sources *source.Registry
	metrics *metrics

	transcripts *transcriptStore

	// modelMu serializes model swaps; only one model is ever resident.
	modelMu   sync.Mutex
	current   model.Model
	currentID string

	// mu guards the session map; per-tag start/stop ordering is enforced
	// by tagLocks so unrelated tags never contend.
	mu       sync.Mutex
	sessions map[string]*session

	tagMu    sync.Mutex
	tagLocks map[string]*sync.Mutex
}

type session struct {
	tag    string
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Scribe instance.
func New(cfg Config, models *model.Registry) *Scribe {
	cfg.applyDefaults()
	return &Scribe{
		config:      cfg,
		models:      models,
		sources:     source.NewRegistry(cfg.StopGrace),
		metrics:     newMetrics(),
		transcripts: newTranscriptStore(),
		sessions:    make(map[string]*session),
		tagLocks:    make(map[string]*sync.Mutex),
	}
}

// Models exposes the capability registry for the control surface.
func (s *Scribe) Models() *model.Registry { return s.models }

// LoadModel makes the named capability the resident model. Loading the same
// capability with the same config is a no-op; otherwise the current model is
// fully unloaded before the new one is constructed and loaded. A failed load
// leaves no model resident.
func (s *Scribe) LoadModel(ctx context.Context, name string, cfg model.Config) error {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()

	id := fmt.Sprintf("%s|%s|%s", name, cfg.ModelPath, cfg.Variant)
	if s.current != nil && s.currentID == id {
		slog.Info("Model already loaded", "model", name)
		return nil
	}

	if s.current != nil {
		slog.Info("Unloading current model", "model", s.current.Name())
		if err := s.current.Unload(); err != nil {
			slog.Warn("Failed to unload model", "model", s.current.Name(), "error", err)
		}
		s.current = nil
		s.currentID = ""
	}

	m, err := s.models.New(name, cfg)
	if err != nil {
		return err
	}
	if err := m.Load(ctx); err != nil {
		return fmt.Errorf("failed to load model %q: %w", name, err)
	}

	s.current = m
	s.currentID = id
	slog.Info("Model loaded", "model", name)
	return nil
}

// UnloadModel releases the resident model, if any.
func (s *Scribe) UnloadModel() error {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()

	if s.current == nil {
		return nil
	}
	err := s.current.Unload()
	s.current = nil
	s.currentID = ""
	return err
}

// CurrentModel returns the resident model, or nil.
func (s *Scribe) CurrentModel() model.Model {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	return s.current
}

// Start begins transcribing one source under tag, forwarding every segment
// to sink. If the tag already has a running pipeline it is stopped first and
// the new one takes its place. Fatal start problems (no model, missing
// device, bad file) surface synchronously and leave nothing behind.
func (s *Scribe) Start(typ source.Type, tag string, params StreamParams, sink Sink) error {
	m := s.CurrentModel()
	if m == nil {
		return ErrNoModel
	}

	lock := s.tagLock(tag)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	prev, restarting := s.sessions[tag]
	s.mu.Unlock()
	if restarting {
		slog.Info("Tag already streaming, restarting", "tag", tag)
		s.stopSession(tag, prev)
	}

	producer, err := source.New(typ, source.Params{FilePath: params.FilePath})
	if err != nil {
		return err
	}

	handle, err := s.sources.Start(tag, producer)
	if err != nil {
		return err
	}

	if params.Language == "" {
		params.Language = s.config.DefaultLanguage
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		tag:    tag,
		id:     uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[tag] = sess
	s.mu.Unlock()
	s.metrics.streamStarted()

	slog.Info("Transcription started",
		"tag", tag,
		"sessionID", sess.id,
		"sourceType", string(typ),
		"model", m.Name(),
		"language", params.Language)

	go s.runPipeline(ctx, sess, handle, m, params, sink)
	return nil
}

// Stop cancels the pipeline for tag and waits, bounded by the stop grace
// period, for it to unwind. Stopping a tag with no running pipeline returns
// ErrNotFound; it never panics and repeated stops are harmless.
func (s *Scribe) Stop(tag string) error {
	lock := s.tagLock(tag)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	sess, ok := s.sessions[tag]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.stopSession(tag, sess)
	slog.Info("Transcription stopped", "tag", tag, "sessionID", sess.id)
	return nil
}

// ListActive returns the tags with running pipelines, sorted.
func (s *Scribe) ListActive() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := make([]string, 0, len(s.sessions))
	for tag := range s.sessions {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Transcript returns the stored segment history for tag, oldest first.
func (s *Scribe) Transcript(tag string) []Segment {
	return s.transcripts.get(tag)
}

// Shutdown stops every pipeline, closes the source registry, and unloads the
// resident model.
func (s *Scribe) Shutdown() {
	for _, tag := range s.ListActive() {
		if err := s.Stop(tag); err != nil && !errors.Is(err, ErrNotFound) {
			slog.Warn("Failed to stop stream during shutdown", "tag", tag, "error", err)
		}
	}
	s.sources.Close()
	if err := s.UnloadModel(); err != nil {
		slog.Warn("Failed to unload model during shutdown", "error", err)
	}
}

func (s *Scribe) runPipeline(ctx context.Context, sess *session, handle *source.Handle, m model.Model, params StreamParams, sink Sink) {
	defer func() {
		// Cleanup runs here no matter where the pipeline died: the
		// producer is stopped through the registry and the session
		// leaves the active set.
		if err := s.sources.Stop(sess.tag); err != nil && !errors.Is(err, source.ErrNotFound) {
			slog.Warn("Failed to stop producer", "tag", sess.tag, "error", err)
		}
		s.mu.Lock()
		if s.sessions[sess.tag] == sess {
			delete(s.sessions, sess.tag)
		}
		s.mu.Unlock()
		s.metrics.streamStopped()
		close(sess.done)
	}()

	w := &windower{
		tag:   sess.tag,
		model: m,
		opts: model.Options{
			Language:      params.Language,
			InitialPrompt: params.InitialPrompt,
		},
		window:  s.config.WindowSeconds,
		sink:    s.recordingSink(sink),
		metrics: s.metrics,
	}

	err := w.run(ctx, handle.Chunks())
	switch {
	case ctx.Err() != nil:
		slog.Debug("Pipeline cancelled", "tag", sess.tag, "sessionID", sess.id)
	case err == nil:
		slog.Info("Pipeline finished", "tag", sess.tag, "sessionID", sess.id)
	case errors.Is(err, ErrSinkClosed):
		slog.Info("Pipeline consumer disconnected", "tag", sess.tag, "sessionID", sess.id)
	default:
		slog.Error("Pipeline failed", "tag", sess.tag, "sessionID", sess.id, "error", err)
	}
}

// recordingSink tees every emitted segment into the transcript store before
// handing it to the caller's sink.
func (s *Scribe) recordingSink(sink Sink) Sink {
	return func(ctx context.Context, seg Segment) error {
		s.transcripts.append(seg)
		return sink(ctx, seg)
	}
}

func (s *Scribe) stopSession(tag string, sess *session) {
	sess.cancel()
	select {
	case <-sess.done:
	case <-time.After(s.config.StopGrace):
		slog.Warn("Pipeline did not stop within grace period", "tag", tag)
		s.mu.Lock()
		if s.sessions[tag] == sess {
			delete(s.sessions, tag)
		}
		s.mu.Unlock()
	}
}

func (s *Scribe) tagLock(tag string) *sync.Mutex {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()

	lock, ok := s.tagLocks[tag]
	if !ok {
		lock = &sync.Mutex{}
		s.tagLocks[tag] = lock
	}
	return lock
}
