package scribe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/bosley/murmur/audio"
	"github.com/bosley/murmur/model"
	"github.com/bosley/murmur/source"
)

// windower bridges a chunk sequence to a transcription model that only
// accepts bounded audio spans, emitting segments as if the model streamed.
// It accumulates chunks until a window's worth of audio is buffered,
// dispatches the whole span in one shot, and shifts the model's window-local
// timestamps by the stream origin of that span. A failed window is logged,
// skipped, and never reprocessed: the origin advances past it regardless.
type windower struct {
	tag     string
	model   model.Model
	opts    model.Options
	window  float64
	sink    Sink
	metrics *metrics

	buf    bytes.Buffer
	origin float64
}

// run consumes chunks until the channel closes or ctx is cancelled. A closed
// channel is the source's natural end and triggers a final flush of any
// remainder, short or not. A chunk carrying a producer error terminates the
// pipeline with that error.
func (w *windower) run(ctx context.Context, chunks <-chan source.Chunk) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-chunks:
			if !ok {
				return w.flushTail(ctx)
			}
			if chunk.Err != nil {
				return chunk.Err
			}

			w.buf.Write(chunk.Data)
			if audio.Duration(w.buf.Len()) >= w.window {
				if err := w.dispatch(ctx); err != nil {
					return err
				}
			}
		}
	}
}

func (w *windower) flushTail(ctx context.Context) error {
	if w.buf.Len() == 0 {
		return nil
	}
	return w.dispatch(ctx)
}

func (w *windower) dispatch(ctx context.Context) error {
	pcm := make([]byte, w.buf.Len())
	copy(pcm, w.buf.Bytes())
	w.buf.Reset()

	origin := w.origin
	w.origin += audio.Duration(len(pcm))

	out, err := w.model.Transcribe(ctx, pcm, w.opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		// Recoverable: skip this window, keep the pipeline alive.
		w.metrics.windowFailed()
		slog.Error("Window transcription failed, skipping window",
			"tag", w.tag,
			"windowStart", origin,
			"windowSeconds", w.origin-origin,
			"error", err)
		return nil
	}
	w.metrics.windowDispatched()

	for _, seg := range out.Segments {
		emitted := Segment{
			Text:      seg.Text,
			Start:     origin + seg.Start,
			End:       origin + seg.End,
			SourceTag: w.tag,
		}
		if err := w.emit(ctx, emitted); err != nil {
			return err
		}
	}
	return nil
}

func (w *windower) emit(ctx context.Context, seg Segment) error {
	if err := w.sink(ctx, seg); err != nil {
		if errors.Is(err, ErrSinkClosed) || errors.Is(err, context.Canceled) {
			return err
		}
		slog.Warn("Segment delivery failed",
			"tag", w.tag,
			"start", seg.Start,
			"error", err)
		return nil
	}
	w.metrics.segmentEmitted()
	return nil
}

// TranscribeStream adapts a single-shot transcription model into an
// incremental segment stream over a chunk sequence. It is the streaming face
// of the capability contract for models with no native streaming mode.
func TranscribeStream(ctx context.Context, m model.Model, chunks <-chan source.Chunk, tag string, windowSeconds float64, opts model.Options, sink Sink) error {
	if windowSeconds <= 0 {
		windowSeconds = 5
	}
	w := &windower{
		tag:    tag,
		model:  m,
		opts:   opts,
		window: windowSeconds,
		sink:   sink,
	}
	return w.run(ctx, chunks)
}
