package scribe

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/bosley/murmur/source"
)

// watchSpool transcribes WAV files dropped into the spool directory. Each new
// file becomes a file stream tagged after its base name; its segments land in
// the transcript store and are retrievable over the control surface.
func (s *Scribe) watchSpool(ctx context.Context) {
	if err := os.MkdirAll(s.config.SpoolDir, 0755); err != nil {
		slog.Error("Failed to create spool directory",
			"error", err,
			"path", s.config.SpoolDir)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create spool watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(s.config.SpoolDir); err != nil {
		slog.Error("Failed to watch spool directory",
			"error", err,
			"path", s.config.SpoolDir)
		return
	}

	slog.Info("Watching spool directory", "path", s.config.SpoolDir)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleSpoolEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Spool watcher error", "error", err)
		}
	}
}

func (s *Scribe) handleSpoolEvent(event fsnotify.Event) {
	// Writers stage uploads as .tmp and rename when complete.
	if !event.Op.Has(fsnotify.Create) || strings.HasSuffix(event.Name, ".tmp") {
		return
	}
	if !strings.EqualFold(filepath.Ext(event.Name), ".wav") {
		return
	}

	tag := strings.TrimSuffix(filepath.Base(event.Name), filepath.Ext(event.Name))
	slog.Info("Found spooled recording", "tag", tag, "path", event.Name)

	params := StreamParams{FilePath: event.Name}
	if err := s.Start(source.TypeFile, tag, params, logSink(tag)); err != nil {
		slog.Error("Failed to start spool transcription",
			"tag", tag,
			"path", event.Name,
			"error", err)
	}
}

// logSink is the terminal sink for spool streams; the transcript store keeps
// the segments, so the sink only has to make progress.
func logSink(tag string) Sink {
	return func(ctx context.Context, seg Segment) error {
		slog.Debug("Transcribed segment",
			"tag", tag,
			"start", seg.Start,
			"end", seg.End,
			"text", seg.Text)
		return nil
	}
}
