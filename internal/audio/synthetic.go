package audio

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SyntheticPlatform grants streams fed by a generated signal. It is used when
// running without a sound card and in tests.
type SyntheticPlatform struct {
	SampleRate float64
	// WithVideo adds a display track to every grant, as a browser grant would.
	WithVideo bool
	// WithoutAudio grants streams that carry no audio track.
	WithoutAudio bool
	Now          func() time.Time
}

var _ Platform = (*SyntheticPlatform)(nil)

// RequestDisplayMedia returns a stream with a generated audio track.
func (p *SyntheticPlatform) RequestDisplayMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CaptureError{Err: err}
	}
	var tracks []Track
	if c.Video && p.WithVideo {
		tracks = append(tracks, newDisplayTrack("synthetic-video", "synthetic screen"))
	}
	if c.Audio && !p.WithoutAudio {
		tracks = append(tracks, NewSyntheticTrack(p.SampleRate, p.Now))
	}
	return NewStream(tracks...), nil
}

// SyntheticTrack produces a drifting bass/mid/treble mix with occasional kicks.
type SyntheticTrack struct {
	trackBase

	sampleRate float64
	now        func() time.Time
	epoch      time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

var _ AudioTrack = (*SyntheticTrack)(nil)

// NewSyntheticTrack creates a generated track. A nil clock uses time.Now.
func NewSyntheticTrack(sampleRate float64, now func() time.Time) *SyntheticTrack {
	if sampleRate <= 0 {
		sampleRate = 44_100
	}
	if now == nil {
		now = time.Now
	}
	return &SyntheticTrack{
		trackBase: trackBase{
			id:    "synthetic-audio",
			kind:  KindAudio,
			label: "synthetic generator",
		},
		sampleRate: sampleRate,
		now:        now,
		epoch:      now(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SampleRate returns the generator sample rate.
func (s *SyntheticTrack) SampleRate() float64 {
	return s.sampleRate
}

// Samples renders the len(dst) samples that end at the current clock time.
// A stopped track is silent.
func (s *SyntheticTrack) Samples(dst []float32) {
	if s.Stopped() {
		clear(dst)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now().Sub(s.epoch).Seconds()
	step := 1 / s.sampleRate
	start := end - float64(len(dst))*step
	for i := range dst {
		t := start + float64(i)*step
		dst[i] = float32(s.sample(t))
	}
}

func (s *SyntheticTrack) sample(t float64) float64 {
	phaseBass := t * 0.7
	phaseMid := t * 1.2
	phaseHigh := t * 2.1

	bass := clamp01(0.5 + 0.5*math.Sin(phaseBass))
	mid := clamp01(0.4 + 0.4*math.Sin(phaseMid+0.5))
	treble := clamp01(0.3 + 0.3*math.Sin(phaseHigh+1.0))

	// Half-second kick envelope on the bass.
	beat := math.Exp(-8 * math.Mod(t, 0.5))

	v := 0.45*bass*(0.6+0.4*beat)*math.Sin(2*math.Pi*70*t) +
		0.25*mid*math.Sin(2*math.Pi*440*t+math.Sin(t)) +
		0.12*treble*math.Sin(2*math.Pi*3200*t) +
		0.02*(s.rng.Float64()*2-1)
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
