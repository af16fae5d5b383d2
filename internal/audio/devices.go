package audio

import (
	"fmt"
	"sort"

	"github.com/gordonklaus/portaudio"
)

// Device is one PortAudio endpoint as offered to the user when choosing a
// capture source.
type Device struct {
	Name       string
	HostAPI    string
	Inputs     int
	Outputs    int
	SampleRate float64
	// DefaultInput is the system default input.
	DefaultInput bool
	// Loopback marks monitor or loopback sources, which carry what the
	// machine is playing rather than a microphone.
	Loopback bool
	// Preferred is the source a grant without an explicit device would open.
	Preferred bool
}

// Capturable reports whether the device has input channels.
func (d Device) Capturable() bool {
	return d.Inputs > 0
}

// ListDevices returns every device across host APIs sorted by host and name.
func ListDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultInputIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInputIndex = def.Index
	}
	defaultHostIndex := -1
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil && host.DefaultInputDevice != nil {
		defaultHostIndex = host.DefaultInputDevice.Index
	}
	return describeDevices(hosts, defaultInputIndex, defaultHostIndex), nil
}

// describeDevices flattens hosts into Devices and marks the one the default
// grant would pick, using the same scoring as findDevice.
func describeDevices(hosts []*portaudio.HostApiInfo, defaultInputIndex, defaultHostIndex int) []Device {
	var all []*portaudio.DeviceInfo
	hostOf := make(map[*portaudio.DeviceInfo]string)
	for _, host := range hosts {
		if host == nil {
			continue
		}
		for _, d := range host.Devices {
			if d == nil {
				continue
			}
			all = append(all, d)
			hostOf[d] = host.Name
		}
	}
	preferred := bestScored(scoreDevices(all, defaultInputIndex, defaultHostIndex))

	devices := make([]Device, 0, len(all))
	for _, d := range all {
		devices = append(devices, Device{
			Name:         d.Name,
			HostAPI:      hostOf[d],
			Inputs:       d.MaxInputChannels,
			Outputs:      d.MaxOutputChannels,
			SampleRate:   d.DefaultSampleRate,
			DefaultInput: d.Index == defaultInputIndex,
			Loopback:     d.MaxInputChannels > 0 && isLoopbackName(d.Name),
			Preferred:    d == preferred,
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
	return devices
}
