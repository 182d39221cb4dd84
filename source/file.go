package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	wav "github.com/youpy/go-wav"

	"github.com/bosley/murmur/audio"
)

// chunkInterval is the real-time duration of one nominal chunk; file replay
// paces emission at this cadence so downstream windowing sees live-like
// timing.
const chunkInterval = time.Duration(audio.ChunkSamples) * time.Second / audio.SampleRate

// FilePlayer replays a stored WAV file as a paced, finite chunk sequence.
// The file must already be in the fixed capture format; no conversion is
// attempted.
type FilePlayer struct {
	path string
}

// NewFilePlayer validates the file's header eagerly so a missing file or a
// format mismatch fails the start call before any chunk is produced.
func NewFilePlayer(path string) (*FilePlayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	format, err := wav.NewReader(f).Format()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav header: %w", err)
	}
	if err := audio.ValidateFormat(format); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &FilePlayer{path: path}, nil
}

func (p *FilePlayer) Run(ctx context.Context, ready func(error), out chan<- Chunk) error {
	f, err := os.Open(p.path)
	if err != nil {
		err = fmt.Errorf("failed to open audio file: %w", err)
		ready(err)
		return err
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		err = fmt.Errorf("failed to read wav header: %w", err)
		ready(err)
		return err
	}
	if err := audio.ValidateFormat(format); err != nil {
		ready(err)
		return err
	}

	slog.Info("File replay started", "path", p.path)
	ready(nil)

	for {
		samples, err := reader.ReadSamples(audio.ChunkSamples)
		if len(samples) > 0 {
			select {
			case out <- Chunk{Data: audio.SamplesToBytes(samples)}:
			case <-ctx.Done():
				return nil
			}
		}
		if err == io.EOF {
			slog.Info("File replay finished", "path", p.path)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read wav samples: %w", err)
		}

		select {
		case <-time.After(chunkInterval):
		case <-ctx.Done():
			return nil
		}
	}
}
