package audio

import (
	"context"
	"sync"
	"sync/atomic"
)

// Kind distinguishes audio tracks from video tracks in a granted stream.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is one media track of a granted capture stream.
type Track interface {
	ID() string
	Kind() Kind
	Label() string
	// Stop releases the track. Stopping twice is harmless.
	Stop()
	Stopped() bool
}

// AudioTrack is a track that can hand out its most recent mono samples.
type AudioTrack interface {
	Track
	SampleRate() float64
	// Samples copies the latest len(dst) samples, oldest first, into dst.
	Samples(dst []float32)
}

// Constraints describes what a capture grant asks for.
type Constraints struct {
	Video bool
	Audio bool
}

// Platform grants capture streams. RequestDisplayMedia may block while the
// user answers a permission prompt.
type Platform interface {
	RequestDisplayMedia(ctx context.Context, c Constraints) (*Stream, error)
}

// Stream is a granted bundle of tracks.
type Stream struct {
	mu     sync.Mutex
	tracks []Track
}

// NewStream bundles tracks into a stream.
func NewStream(tracks ...Track) *Stream {
	return &Stream{tracks: tracks}
}

// Tracks returns every track in the stream.
func (s *Stream) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// AudioTracks returns the audio tracks in grant order.
func (s *Stream) AudioTracks() []AudioTrack {
	var out []AudioTrack
	for _, t := range s.Tracks() {
		if t.Kind() != KindAudio {
			continue
		}
		if at, ok := t.(AudioTrack); ok {
			out = append(out, at)
		}
	}
	return out
}

// VideoTracks returns the video tracks in grant order.
func (s *Stream) VideoTracks() []Track {
	var out []Track
	for _, t := range s.Tracks() {
		if t.Kind() == KindVideo {
			out = append(out, t)
		}
	}
	return out
}

// Stop stops every track.
func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Active reports whether any track is still running.
func (s *Stream) Active() bool {
	for _, t := range s.Tracks() {
		if !t.Stopped() {
			return true
		}
	}
	return false
}

// trackBase carries the bookkeeping shared by concrete tracks.
type trackBase struct {
	id      string
	kind    Kind
	label   string
	stopped atomic.Bool
	onStop  func()
	once    sync.Once
}

func (t *trackBase) ID() string    { return t.id }
func (t *trackBase) Kind() Kind    { return t.kind }
func (t *trackBase) Label() string { return t.label }
func (t *trackBase) Stopped() bool { return t.stopped.Load() }

func (t *trackBase) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		if t.onStop != nil {
			t.onStop()
		}
	})
}

// displayTrack is the video half of a display grant. It carries no frames;
// the visualizer only needs it so it can be discarded.
type displayTrack struct {
	trackBase
}

func newDisplayTrack(id, label string) *displayTrack {
	return &displayTrack{trackBase: trackBase{id: id, kind: KindVideo, label: label}}
}
