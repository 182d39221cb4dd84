package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/bosley/murmur/audio"
)

// loopbackFrames is the capture granularity for loopback reads. It is
// deliberately smaller than the nominal chunk: frames are accumulated and
// re-chunked to the fixed size, and a short read period keeps the blocking
// loop responsive to stop requests.
const loopbackFrames = 480

// Loopback captures the system's audio output through a loopback-capable
// input device (the monitor paired with the default output when one exists).
// Captured frames arrive as floats and are converted to 16-bit PCM on this
// boundary. The blocking read loop and the host API state are pinned to one
// dedicated OS thread for the lifetime of the capture.
type Loopback struct{}

func NewLoopback() *Loopback { return &Loopback{} }

func (l *Loopback) Run(ctx context.Context, ready func(error), out chan<- Chunk) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := portaudio.Initialize(); err != nil {
		err = fmt.Errorf("failed to initialize portaudio: %w", err)
		ready(err)
		return err
	}
	defer portaudio.Terminate()

	device, err := findLoopbackDevice()
	if err != nil {
		ready(err)
		return err
	}

	in := make([]float32, loopbackFrames)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: audio.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      audio.SampleRate,
		FramesPerBuffer: loopbackFrames,
	}

	stream, err := portaudio.OpenStream(params, in)
	if err != nil {
		err = fmt.Errorf("failed to open loopback stream on %q: %w", device.Name, err)
		ready(err)
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		err = fmt.Errorf("failed to start loopback stream: %w", err)
		ready(err)
		return err
	}
	defer stream.Stop()

	slog.Info("Loopback capture started", "device", device.Name)
	ready(nil)

	pending := make([]byte, 0, audio.ChunkBytes*2)
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := stream.Read(); err != nil {
			return fmt.Errorf("loopback read on %q: %w", device.Name, err)
		}

		pending = append(pending, audio.Float32ToPCM16(in)...)
		for len(pending) >= audio.ChunkBytes {
			data := make([]byte, audio.ChunkBytes)
			copy(data, pending)
			pending = pending[audio.ChunkBytes:]

			select {
			case out <- Chunk{Data: data}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// findLoopbackDevice prefers the monitor source paired with the current
// default output device and falls back to any input device whose name marks
// it as loopback-capable.
func findLoopbackDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}

	if defOut, err := portaudio.DefaultOutputDevice(); err == nil {
		for _, d := range devices {
			if d.MaxInputChannels > 0 && IsLoopbackName(d.Name) &&
				strings.Contains(strings.ToLower(d.Name), strings.ToLower(defOut.Name)) {
				return d, nil
			}
		}
	}

	for _, d := range devices {
		if d.MaxInputChannels > 0 && IsLoopbackName(d.Name) {
			return d, nil
		}
	}

	return nil, errors.New("no loopback capture device found; enable a monitor/loopback input for your output device")
}

// IsLoopbackName reports whether a device name marks an output-capture
// device across the common host APIs (PulseAudio/PipeWire monitors, Windows
// stereo mix, explicit loopback endpoints).
func IsLoopbackName(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "monitor") ||
		strings.Contains(n, "loopback") ||
		strings.Contains(n, "stereo mix")
}
