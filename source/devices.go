package source

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes one capture-capable device for operator listings.
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	Loopback          bool
}

// ListDevices returns the capture-capable devices, flagging the ones usable
// for loopback capture. Initialization is scoped to the call.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		infos = append(infos, DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Loopback:          IsLoopbackName(d.Name),
		})
	}

	return infos, nil
}
