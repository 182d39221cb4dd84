package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/bosley/murmur/audio"
)

// Microphone captures the default input device at the fixed format. The
// portaudio callback runs on a driver-owned thread and hands blocks off
// through a buffered channel with a non-blocking send; the consuming side
// drains opportunistically so a slow pipeline can never stall the driver.
type Microphone struct{}

func NewMicrophone() *Microphone { return &Microphone{} }

func (m *Microphone) Run(ctx context.Context, ready func(error), out chan<- Chunk) error {
	if err := portaudio.Initialize(); err != nil {
		err = fmt.Errorf("failed to initialize portaudio: %w", err)
		ready(err)
		return err
	}
	defer portaudio.Terminate()

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		err = fmt.Errorf("no default input device: %w", err)
		ready(err)
		return err
	}

	blocks := make(chan []int16, chunkBacklog)
	var dropped atomic.Int64

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: audio.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      audio.SampleRate,
		FramesPerBuffer: audio.ChunkSamples,
	}

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		// Driver thread: copy and hand off, never block, never log.
		block := make([]int16, len(in))
		copy(block, in)
		select {
		case blocks <- block:
		default:
			dropped.Add(1)
		}
	})
	if err != nil {
		err = fmt.Errorf("failed to open input stream: %w", err)
		ready(err)
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		err = fmt.Errorf("failed to start input stream: %w", err)
		ready(err)
		return err
	}
	defer stream.Stop()

	slog.Info("Microphone capture started",
		"device", device.Name,
		"sampleRate", audio.SampleRate,
		"framesPerBuffer", audio.ChunkSamples)
	ready(nil)

	var reported int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case block := <-blocks:
			if d := dropped.Load(); d > reported {
				slog.Warn("Dropped microphone blocks, pipeline falling behind",
					"dropped", d-reported)
				reported = d
			}
			select {
			case out <- Chunk{Data: audio.Int16ToBytes(block)}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
