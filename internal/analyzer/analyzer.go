package analyzer

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/guidoenr/tabviz/internal/audio"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	// FFTSize is the transform window in samples.
	FFTSize = 2048
	// BinCount is the snapshot length, half the window.
	BinCount = FFTSize / 2

	MinDecibels = -90.0
	MaxDecibels = -10.0

	DefaultSmoothing = 0.8
)

// Config controls Analyzer behaviour. Zero values select the defaults.
type Config struct {
	FFTSize     int
	MinDecibels float64
	MaxDecibels float64
	// Smoothing is the temporal blend in [0,1]; higher responds slower.
	Smoothing *float64
}

// Analyzer turns the latest samples of an audio track into byte-range
// frequency magnitudes, one snapshot per frame.
type Analyzer struct {
	mu sync.Mutex

	source     audio.AudioTrack
	sampleRate float64
	size       int
	minDB      float64
	maxDB      float64
	smoothing  float64
	stopped    bool

	samples  []float32
	buffer   []complex128
	window   []float64
	smoothed []float64
}

// Start wires the first audio track of stream into a new analyzer.
func Start(stream *audio.Stream, cfg Config) (*Analyzer, error) {
	if stream == nil {
		return nil, fmt.Errorf("start analyzer: %w", audio.ErrNoAudioTrack)
	}
	tracks := stream.AudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("start analyzer: %w", audio.ErrNoAudioTrack)
	}
	return New(tracks[0], cfg)
}

// New creates an analyzer reading from a single track.
func New(source audio.AudioTrack, cfg Config) (*Analyzer, error) {
	if source == nil {
		return nil, errors.New("analyzer: nil source")
	}
	if cfg.FFTSize == 0 {
		cfg.FFTSize = FFTSize
	}
	if cfg.FFTSize < 32 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		return nil, fmt.Errorf("analyzer: fft size %d is not a power of two >= 32", cfg.FFTSize)
	}
	if cfg.MinDecibels == 0 && cfg.MaxDecibels == 0 {
		cfg.MinDecibels, cfg.MaxDecibels = MinDecibels, MaxDecibels
	}
	if cfg.MinDecibels >= cfg.MaxDecibels {
		return nil, fmt.Errorf("analyzer: decibel floor %.1f must be below ceiling %.1f", cfg.MinDecibels, cfg.MaxDecibels)
	}
	smoothing := DefaultSmoothing
	if cfg.Smoothing != nil {
		smoothing = clamp(*cfg.Smoothing, 0, 1)
	}

	return &Analyzer{
		source:     source,
		sampleRate: source.SampleRate(),
		size:       cfg.FFTSize,
		minDB:      cfg.MinDecibels,
		maxDB:      cfg.MaxDecibels,
		smoothing:  smoothing,
		samples:    make([]float32, cfg.FFTSize),
		buffer:     make([]complex128, cfg.FFTSize),
		window:     window.Blackman(cfg.FFTSize),
		smoothed:   make([]float64, cfg.FFTSize/2),
	}, nil
}

// Pull computes the current snapshot into dst, growing it if needed, and
// returns it. After Stop every value is zero.
func (a *Analyzer) Pull(dst Snapshot) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	bins := a.size / 2
	if cap(dst) < bins {
		dst = make(Snapshot, bins)
	}
	dst = dst[:bins]
	if a.stopped {
		clear(dst)
		return dst
	}

	a.source.Samples(a.samples)
	for i, s := range a.samples {
		a.buffer[i] = complex(float64(s)*a.window[i], 0)
	}
	spectrum := fft.FFT(a.buffer)

	norm := 1 / float64(a.size)
	tau := a.smoothing
	scale := 255 / (a.maxDB - a.minDB)
	for k := 0; k < bins; k++ {
		mag := cmag(spectrum[k]) * norm
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag
		dst[k] = toByte(a.smoothed[k], a.minDB, scale)
	}
	return dst
}

// SetSmoothing changes the temporal blend for the following pulls.
func (a *Analyzer) SetSmoothing(factor float64) {
	a.mu.Lock()
	a.smoothing = clamp(factor, 0, 1)
	a.mu.Unlock()
}

// Smoothing returns the current temporal blend.
func (a *Analyzer) Smoothing() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.smoothing
}

// Stop detaches the analyzer from its source. It does not stop the track.
// Calling it more than once is harmless.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.stopped = true
	a.source = nil
	clear(a.smoothed)
}

// Stopped reports whether Stop was called.
func (a *Analyzer) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// SampleRate returns the sample rate of the analyzed track.
func (a *Analyzer) SampleRate() float64 {
	return a.sampleRate
}

// BinCount returns the snapshot length.
func (a *Analyzer) BinCount() int {
	return a.size / 2
}

// BinFrequency returns the centre frequency of bin k in Hz.
func (a *Analyzer) BinFrequency(k int) float64 {
	return float64(k) * a.sampleRate / float64(a.size)
}

func toByte(mag, minDB, scale float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := math.Floor((db - minDB) * scale)
	return uint8(clamp(v, 0, 255))
}

func cmag(c complex128) float64 {
	return math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
