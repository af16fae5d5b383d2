package app

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/tabviz/internal/audio"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/present"
	"github.com/guidoenr/tabviz/internal/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	mu     sync.Mutex
	frames int
	last   present.Frame
	err    error
	closed bool
}

func (s *countingSink) Present(f present.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.last = f
	return s.err
}

func (s *countingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

type recordingAlerter struct {
	mu   sync.Mutex
	msgs []string
	seen chan struct{}
}

func (r *recordingAlerter) Alert(title, text string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, text)
	r.mu.Unlock()
	r.seen <- struct{}{}
	return nil
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	if cfg.Platform == nil {
		cfg.Platform = &audio.SyntheticPlatform{}
	}
	cfg.Log = quietLogger()
	cfg.Width, cfg.Height = 96, 64
	cfg.TargetFPS = 200
	cfg.Seed = 42
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{Log: quietLogger()})
	require.Error(t, err, "platform is required")

	_, err = New(Config{Platform: &audio.SyntheticPlatform{}, Log: quietLogger(), Palette: "emoji"})
	require.Error(t, err)

	_, err = New(Config{Platform: &audio.SyntheticPlatform{}, Log: quietLogger(), TargetFPS: 1000})
	require.Error(t, err)

	bad := params.Defaults()
	bad.Smoothing = 2
	_, err = New(Config{Platform: &audio.SyntheticPlatform{}, Log: quietLogger(), Visual: bad})
	require.Error(t, err)

	a, err := New(Config{Platform: &audio.SyntheticPlatform{}, Log: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, params.Defaults().Mode, a.Status().Mode)
	assert.Equal(t, 60.0, a.cfg.TargetFPS)
}

func TestKeyEvents(t *testing.T) {
	cases := []struct {
		char rune
		key  keyboard.Key
		want inputEvent
	}{
		{0, keyboard.KeyEsc, inputEventQuit},
		{0, keyboard.KeyCtrlC, inputEventQuit},
		{'q', 0, inputEventQuit},
		{0, keyboard.KeySpace, inputEventToggle},
		{' ', 0, inputEventToggle},
		{'1', 0, inputEventModeBars},
		{'4', 0, inputEventModeParticles},
		{'m', 0, inputEventNextMode},
		{'T', 0, inputEventNextTheme},
		{'r', 0, inputEventRandomize},
		{'+', 0, inputEventSensitivityUp},
		{'-', 0, inputEventSensitivityDown},
		{']', 0, inputEventSmoothingUp},
		{'[', 0, inputEventSmoothingDown},
	}
	for _, tc := range cases {
		got, ok := keyEvent(tc.char, tc.key)
		require.True(t, ok, "%q", tc.char)
		assert.Equal(t, tc.want, got, "%q", tc.char)
	}
	_, ok := keyEvent('z', 0)
	assert.False(t, ok)
}

func TestHandleInputAdjustsSettings(t *testing.T) {
	a := newTestApp(t, Config{})

	a.handleInput(inputEventModeCircular)
	assert.Equal(t, params.ModeCircular, a.ctrl.Config().Mode)
	a.handleInput(inputEventNextMode)
	assert.Equal(t, params.ModeParticles, a.ctrl.Config().Mode)

	a.handleInput(inputEventNextTheme)
	assert.Equal(t, "ocean", a.ctrl.Config().Theme)

	a.handleInput(inputEventSensitivityUp)
	assert.InDelta(t, 1.6, a.ctrl.Config().Sensitivity, 1e-9)
	a.handleInput(inputEventSmoothingDown)
	assert.InDelta(t, 0.75, a.ctrl.Config().Smoothing, 1e-9)

	for i := 0; i < 5; i++ {
		a.handleInput(inputEventRandomize)
		cfg := a.ctrl.Config()
		assert.Contains(t, params.ModeNames(), string(cfg.Mode))
		assert.Contains(t, theme.Names(), cfg.Theme)
		assert.Equal(t, cfg.Mode, a.Status().Mode)
	}

	a.handleInput(inputEventQuit)
	assert.True(t, a.quit)
}

func TestPickRandomAvoidsCurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		got := pickRandom([]string{"a", "b"}, "a", rng)
		assert.Contains(t, []string{"a", "b"}, got)
	}
	assert.Equal(t, "x", pickRandom(nil, "x", rng))
	assert.Equal(t, "only", pickRandom([]string{"only"}, "x", rng))
	assert.Equal(t, "fire", nextTheme("missing"))
	assert.Equal(t, "fire", nextTheme("sunset"))
}

func TestStatusText(t *testing.T) {
	st := Status{State: "capturing", Capturing: true, Mode: params.ModeWave, Theme: "neon",
		Sensitivity: 1.5, Smoothing: 0.8, FPS: 59.6, Source: "monitor"}
	st.Features.Bass = 0.5
	text := statusText(st)
	assert.Contains(t, text, "CAPTURING | wave | neon | sens 1.5 smooth 0.80")
	assert.Contains(t, text, "bass 0.50")
	assert.Contains(t, text, "fps 60")
	assert.Contains(t, text, "src=monitor")

	idle := statusText(Status{State: "idle", LastError: "denied"})
	assert.NotContains(t, idle, "bass")
	assert.Contains(t, idle, "denied")
}

func TestPresentDetachesFailingSinks(t *testing.T) {
	good := &countingSink{}
	broken := &countingSink{err: errors.New("pipe closed")}
	a := newTestApp(t, Config{Sinks: []present.Sink{good, broken}})

	a.sched.Step(time.Now())
	a.sched.Step(time.Now())

	assert.Equal(t, 2, good.count())
	assert.Equal(t, 1, broken.count())
	assert.True(t, broken.closed)
	assert.Equal(t, "#ff00ff", good.last.Accent)
	assert.Contains(t, good.last.Status, "IDLE")
	assert.Equal(t, 96, good.last.Image.Bounds().Dx())
}

func TestSinkQuitStopsRun(t *testing.T) {
	sink := &countingSink{err: present.ErrQuit}
	a := newTestApp(t, Config{Sinks: []present.Sink{sink}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))
	assert.Equal(t, 1, sink.count())
}

func TestRunServesStartStopAndApply(t *testing.T) {
	sink := &countingSink{}
	a := newTestApp(t, Config{Sinks: []present.Sink{sink}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.NoError(t, a.Start(ctx))
	assert.Equal(t, "capturing", a.Status().State)

	require.NoError(t, a.Apply(ctx, params.Config{Mode: params.ModeParticles, Theme: "forest", Sensitivity: 2, Smoothing: 0.4}))
	assert.Equal(t, params.ModeParticles, a.Status().Mode)
	require.Error(t, a.Apply(ctx, params.Config{Mode: "laser", Theme: "forest", Sensitivity: 2, Smoothing: 0.4}))

	// Particle frames keep pace with the ticker.
	before := sink.count()
	require.Eventually(t, func() bool { return sink.count() >= before+10 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, a.Stop(ctx))
	assert.Equal(t, "idle", a.Status().State)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestFailedStartRaisesAlert(t *testing.T) {
	alerter := &recordingAlerter{seen: make(chan struct{}, 1)}
	a := newTestApp(t, Config{
		Platform: &audio.SyntheticPlatform{WithVideo: true, WithoutAudio: true},
		Alerter:  alerter,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	require.ErrorIs(t, a.Start(ctx), audio.ErrNoAudioTrack)
	select {
	case <-alerter.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("alert not shown")
	}
	alerter.mu.Lock()
	defer alerter.mu.Unlock()
	require.Len(t, alerter.msgs, 1)
	assert.Contains(t, alerter.msgs[0], "Share tab audio")
}

func TestTerminalOutputWrapsScreen(t *testing.T) {
	var out bytes.Buffer
	a := newTestApp(t, Config{Terminal: true, Output: &out, StatusBar: true, Color: true})

	ctx, cancel := context.WithCancel(context.Background())
	a.sched.Post(func() { a.quit = true })
	defer cancel()
	require.NoError(t, a.Run(ctx))

	assert.Contains(t, out.String(), "\x1b[?1049h")
	assert.Contains(t, out.String(), "\x1b[?1049l")
}

func TestProfilerWritesSections(t *testing.T) {
	var buf closingBuffer
	clock := time.Unix(0, 0)
	p := newProfilerTo(&buf, func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	})
	p.beginFrame()
	p.markSection(StateCapturing, "analyze")
	p.endFrame(StateCapturing)
	require.NoError(t, p.Close())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,state,section,delta_ms", string(lines[0]))
	assert.Contains(t, string(lines[1]), ",capturing,analyze,1.000")
	assert.Contains(t, string(lines[2]), ",capturing,frame_total,2.000")
	assert.True(t, buf.closed)

	var nilProfiler *profiler
	nilProfiler.beginFrame()
	nilProfiler.markSection(StateIdle, "x")
	assert.NoError(t, nilProfiler.Close())
}

type closingBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closingBuffer) Close() error {
	b.closed = true
	return nil
}
