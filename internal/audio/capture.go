package audio

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Capture wraps a PortAudio input stream as an audio track and keeps the most
// recent mono samples in a ring buffer.
type Capture struct {
	trackBase

	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	device     *portaudio.DeviceInfo

	mu     sync.RWMutex
	buffer []float32
	index  int
}

// Config controls how a Capture instance is created.
type Config struct {
	DeviceName string
	BufferSize int
	Channels   int
}

const defaultBufferSize = 4096

var _ AudioTrack = (*Capture)(nil)

// withDefaults fills in the buffer size and channel count when unset.
func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	return c
}

// streamLayout resolves the channel count and PortAudio buffer length for
// device. The ring buffer holds cfg.BufferSize mono samples.
func streamLayout(device *portaudio.DeviceInfo, cfg Config) (Config, int, error) {
	cfg = cfg.withDefaults()
	if device == nil || device.MaxInputChannels <= 0 {
		return cfg, 0, errNoInputDevice
	}
	if device.MaxInputChannels < cfg.Channels {
		cfg.Channels = device.MaxInputChannels
	}
	framesPerBuffer := cfg.BufferSize / cfg.Channels / 4
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}
	return cfg, framesPerBuffer, nil
}

func openCapture(device *portaudio.DeviceInfo, cfg Config) (*Capture, error) {
	cfg, framesPerBuffer, err := streamLayout(device, cfg)
	if err != nil {
		return nil, err
	}
	channels := cfg.Channels

	inParams := portaudio.StreamDeviceParameters{
		Device:   device,
		Channels: channels,
		Latency:  device.DefaultLowInputLatency,
	}

	sampleRate := device.DefaultSampleRate

	capture := &Capture{
		trackBase: trackBase{
			id:    fmt.Sprintf("pa-%d", device.Index),
			kind:  KindAudio,
			label: device.Name,
		},
		sampleRate: sampleRate,
		buffer:     make([]float32, cfg.BufferSize),
		channels:   channels,
		device:     device,
	}
	capture.onStop = func() { _ = capture.Close() }

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input:           inParams,
		Output:          portaudio.StreamDeviceParameters{},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, capture.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	capture.stream = stream

	if err := capture.stream.Start(); err != nil {
		_ = capture.stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	return capture, nil
}

// Close stops and closes the underlying PortAudio stream.
func (c *Capture) Close() error {
	c.stopped.Store(true)
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()
	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		_ = stream.Close()
		return err
	}
	return stream.Close()
}

// SampleRate returns the stream sample rate.
func (c *Capture) SampleRate() float64 {
	return c.sampleRate
}

// Device returns the PortAudio device associated with the capture stream.
func (c *Capture) Device() *portaudio.DeviceInfo {
	return c.device
}

// Samples copies the most recent len(dst) samples out of the ring buffer.
func (c *Capture) Samples(dst []float32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	readRing(c.buffer, c.index, dst)
}

func (c *Capture) process(in []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channels > 1 {
		mono := make([]float32, len(in)/c.channels)
		for i := range mono {
			sum := float32(0)
			base := i * c.channels
			for ch := 0; ch < c.channels; ch++ {
				sum += in[base+ch]
			}
			mono[i] = sum / float32(c.channels)
		}
		c.index = writeRing(c.buffer, c.index, mono)
		return
	}

	c.index = writeRing(c.buffer, c.index, in)
}

// writeRing appends in to the ring buffer whose next write position is index
// and returns the new write position.
func writeRing(buffer []float32, index int, in []float32) int {
	if len(in) == 0 {
		return index
	}

	if len(in) >= len(buffer) {
		copy(buffer, in[len(in)-len(buffer):])
		return 0
	}

	if index+len(in) <= len(buffer) {
		copy(buffer[index:], in)
		index += len(in)
		if index == len(buffer) {
			index = 0
		}
		return index
	}

	remaining := len(buffer) - index
	copy(buffer[index:], in[:remaining])
	copy(buffer, in[remaining:])
	return len(in) - remaining
}

// readRing copies the newest len(dst) samples, oldest first. When dst is
// longer than the ring the leading part is zeroed.
func readRing(buffer []float32, index int, dst []float32) {
	size := len(buffer)
	if len(dst) > size {
		clear(dst[:len(dst)-size])
		dst = dst[len(dst)-size:]
	}
	n := len(dst)
	if n == 0 {
		return
	}
	start := index - n
	if start < 0 {
		start += size
	}
	end := start + n
	if end > size {
		end = size
	}
	copied := copy(dst, buffer[start:end])
	if copied < n {
		copy(dst[copied:], buffer[:n-copied])
	}
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	// Loopback and monitor sources carry what the machine is playing, which is
	// what a shared tab sounds like. Prefer them over the plain default mic.
	if candidate := pickBestDevice(devices); candidate != nil {
		return candidate, nil
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}

	return nil, errNoInputDevice
}

var errNoInputDevice = fmt.Errorf("no suitable audio input device found")

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	name = strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		deviceName := strings.ToLower(device.Name)
		if strings.Contains(deviceName, name) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("audio device %q not found", name)
}

type scoredDevice struct {
	dev   *portaudio.DeviceInfo
	score int
}

var loopbackKeywords = []string{"monitor", "loopback", "mix", "stereo mix", "what u hear", "blackhole"}

func isLoopbackName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func pickBestDevice(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	defaultInputIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInputIndex = def.Index
	}

	defaultHostIndex := -1
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil && host.DefaultInputDevice != nil {
		defaultHostIndex = host.DefaultInputDevice.Index
	}

	return bestScored(scoreDevices(devices, defaultInputIndex, defaultHostIndex))
}

func scoreDevices(devices []*portaudio.DeviceInfo, defaultInputIndex, defaultHostIndex int) []scoredDevice {
	var results []scoredDevice
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}

		score := d.MaxInputChannels

		if d.Index == defaultInputIndex {
			score += 30
		}
		if d.Index == defaultHostIndex {
			score += 20
		}

		if isLoopbackName(d.Name) {
			score += 60
		}

		if strings.Contains(strings.ToLower(d.Name), "default") {
			score += 10
		}

		results = append(results, scoredDevice{dev: d, score: score})
	}
	return results
}

func bestScored(results []scoredDevice) *portaudio.DeviceInfo {
	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})

	return results[0].dev
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}

// AutoDetectDevice returns the best available input device PortAudio can find.
func AutoDetectDevice() (*portaudio.DeviceInfo, error) {
	return findDevice("")
}
