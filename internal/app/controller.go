package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/guidoenr/tabviz/internal/analyzer"
	"github.com/guidoenr/tabviz/internal/audio"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/render"
	"github.com/guidoenr/tabviz/internal/theme"
	"github.com/sirupsen/logrus"
)

// featureFloor is the band level below which status features read as zero.
const featureFloor = 0.05

// State is the capture lifecycle state.
type State int

const (
	StateIdle State = iota
	// StateStarting is held while the capture grant is pending. No frame
	// loop runs in this state.
	StateStarting
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateCapturing:
		return "capturing"
	default:
		return "idle"
	}
}

var (
	// ErrStartAborted is returned to a pending start that was cancelled by
	// StopListening before the grant arrived.
	ErrStartAborted = errors.New("capture start aborted")
	// ErrStartInProgress rejects a start while another one is pending.
	ErrStartInProgress = errors.New("capture start already in progress")
)

// Session is the live capture: the granted stream, its analyzer and the
// audio track feeding it.
type Session struct {
	Stream     *audio.Stream
	Analyzer   *analyzer.Analyzer
	Source     audio.AudioTrack
	SampleRate float64
	Started    time.Time
}

func (s *Session) close() {
	s.Analyzer.Stop()
	s.Stream.Stop()
}

// Status is a copy of the controller state that any goroutine may read.
type Status struct {
	State       string            `json:"state"`
	Capturing   bool              `json:"capturing"`
	Mode        params.Mode       `json:"mode"`
	Theme       string            `json:"theme"`
	Colors      []string          `json:"colors"`
	Sensitivity float64           `json:"sensitivity"`
	Smoothing   float64           `json:"smoothing"`
	Source      string            `json:"source,omitempty"`
	SampleRate  float64           `json:"sampleRate,omitempty"`
	LastError   string            `json:"lastError,omitempty"`
	Features    analyzer.Features `json:"features"`
	FPS         float64           `json:"fps"`
}

// FrameInfo describes a frame that was just drawn onto the surface.
type FrameInfo struct {
	State    State
	At       time.Time
	Snapshot analyzer.Snapshot
	Features analyzer.Features
}

// ControllerOptions wires a Controller.
type ControllerOptions struct {
	Platform  audio.Platform
	Scheduler *Scheduler
	Surface   render.Surface
	Engine    *render.Engine
	Config    params.Config
	Log       *logrus.Logger
	Now       func() time.Time
	// OnFrame is called after every drawn frame, idle or capturing.
	OnFrame func(FrameInfo)

	profiler *profiler
}

// Controller owns the Idle -> Capturing -> Idle lifecycle and the two
// mutually exclusive frame loops. Apart from Status and LoopID, its methods
// must run on the scheduler's loop goroutine.
type Controller struct {
	platform audio.Platform
	sched    *Scheduler
	surface  render.Surface
	engine   *render.Engine
	ambient  render.Ambient
	log      *logrus.Logger
	now      func() time.Time
	onFrame  func(FrameInfo)
	prof     *profiler

	cfg       params.Config
	state     State
	session   *Session
	startGen  uint64
	lastError string

	loop      FrameID
	loopID    atomic.Uint64
	idleEpoch time.Time
	snap      analyzer.Snapshot
	features  analyzer.Features
	lastFrame time.Time
	fps       float64

	status atomic.Pointer[Status]
}

// NewController starts in Idle with the ambient loop scheduled.
func NewController(opts ControllerOptions) *Controller {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Engine == nil {
		opts.Engine = render.NewEngine(nil)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler()
	}
	c := &Controller{
		platform: opts.Platform,
		sched:    opts.Scheduler,
		surface:  opts.Surface,
		engine:   opts.Engine,
		log:      opts.Log,
		now:      opts.Now,
		onFrame:  opts.OnFrame,
		prof:     opts.profiler,
		cfg:      opts.Config,
	}
	c.cfg.Theme = theme.Resolve(c.cfg.Theme)
	c.resumeIdle()
	c.publish()
	return c
}

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Session returns the live capture, or nil outside Capturing.
func (c *Controller) Session() *Session { return c.session }

// Config returns the active visualization settings.
func (c *Controller) Config() params.Config { return c.cfg }

// LoopID is the token of the frame request currently keeping a loop alive;
// zero when no loop is scheduled.
func (c *Controller) LoopID() FrameID { return FrameID(c.loopID.Load()) }

// Status returns the last published state. Safe from any goroutine.
func (c *Controller) Status() Status {
	if st := c.status.Load(); st != nil {
		return *st
	}
	return Status{}
}

// StartListening requests a capture grant and blocks until it resolves.
// Starting while already Capturing is a no-op.
func (c *Controller) StartListening(ctx context.Context) error {
	gen, proceed, err := c.beginStart()
	if !proceed {
		return err
	}
	stream, err := c.platform.RequestDisplayMedia(ctx, audio.Constraints{Video: true, Audio: true})
	return c.finishStart(gen, stream, err)
}

// StartListeningAsync requests the grant on another goroutine and completes
// the start on the loop goroutine. done, if set, runs on the loop goroutine.
func (c *Controller) StartListeningAsync(ctx context.Context, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	gen, proceed, err := c.beginStart()
	if !proceed {
		done(err)
		return
	}
	go func() {
		stream, err := c.platform.RequestDisplayMedia(ctx, audio.Constraints{Video: true, Audio: true})
		c.sched.Post(func() {
			done(c.finishStart(gen, stream, err))
		})
	}()
}

func (c *Controller) beginStart() (uint64, bool, error) {
	switch c.state {
	case StateCapturing:
		return 0, false, nil
	case StateStarting:
		return 0, false, ErrStartInProgress
	}
	c.cancelLoop()
	c.state = StateStarting
	c.startGen++
	c.lastError = ""
	c.publish()
	c.log.Debug("requesting capture grant")
	return c.startGen, true, nil
}

func (c *Controller) finishStart(gen uint64, stream *audio.Stream, err error) error {
	if gen != c.startGen || c.state != StateStarting {
		if stream != nil {
			stream.Stop()
		}
		return ErrStartAborted
	}
	if err != nil {
		return c.failStart(audio.Classify(err))
	}
	if stream == nil {
		return c.failStart(audio.Classify(errors.New("platform returned no stream")))
	}

	// Video is only part of the grant; release it before anything else.
	for _, track := range stream.VideoTracks() {
		track.Stop()
	}
	tracks := stream.AudioTracks()
	if len(tracks) == 0 {
		stream.Stop()
		return c.failStart(audio.ErrNoAudioTrack)
	}

	smoothing := c.cfg.Smoothing
	an, err := analyzer.Start(stream, analyzer.Config{Smoothing: &smoothing})
	if err != nil {
		stream.Stop()
		return c.failStart(audio.Classify(err))
	}

	c.snap = make(analyzer.Snapshot, an.BinCount())
	c.session = &Session{
		Stream:     stream,
		Analyzer:   an,
		Source:     tracks[0],
		SampleRate: an.SampleRate(),
		Started:    c.now(),
	}
	c.state = StateCapturing
	if c.cfg.Mode == params.ModeParticles {
		w, h := c.surface.Size()
		c.engine.Select(params.ModeParticles, w, h)
	}
	c.setLoop(c.sched.RequestFrame(c.captureFrame))
	c.publish()
	c.log.WithFields(logrus.Fields{
		"source":      tracks[0].Label(),
		"sample_rate": c.session.SampleRate,
		"mode":        c.cfg.Mode,
	}).Info("capture started")
	return nil
}

func (c *Controller) failStart(err error) error {
	c.state = StateIdle
	c.lastError = audio.UserMessage(err)
	c.resumeIdle()
	c.publish()
	c.log.WithError(err).Warn("capture start failed")
	return err
}

// StopListening ends capture and resumes the idle animation. Calling it in
// Idle does nothing; calling it while Starting aborts the pending start.
func (c *Controller) StopListening() {
	switch c.state {
	case StateIdle:
		return
	case StateStarting:
		c.startGen++
		c.log.Info("capture start aborted")
	case StateCapturing:
		c.cancelLoop()
		c.session.close()
		c.session = nil
		c.log.Info("capture stopped")
	}
	c.state = StateIdle
	c.features = analyzer.Features{}
	c.resumeIdle()
	c.publish()
}

// SetMode selects a render mode. Selecting particles always reseeds them.
func (c *Controller) SetMode(mode params.Mode) {
	c.cfg.Mode = mode
	w, h := c.surface.Size()
	c.engine.Select(mode, w, h)
	c.cfg.Mode = c.engine.Current()
	c.publish()
}

// SetTheme selects a theme; unknown names fall back to the default.
func (c *Controller) SetTheme(name string) {
	c.cfg.Theme = theme.Resolve(name)
	c.publish()
}

// SetSensitivity sets the magnitude multiplier.
func (c *Controller) SetSensitivity(v float64) {
	c.cfg.Sensitivity = params.ClampSensitivity(v)
	c.publish()
}

// SetSmoothing sets the analyzer smoothing, live when Capturing.
func (c *Controller) SetSmoothing(v float64) {
	c.cfg.Smoothing = params.ClampSmoothing(v)
	if c.session != nil {
		an := c.session.Analyzer
		an.SetSmoothing(c.cfg.Smoothing)
		c.log.WithField("smoothing", an.Smoothing()).Debug("analyzer smoothing updated")
	}
	c.publish()
}

// Apply validates cfg and applies every field that differs from the current
// settings.
func (c *Controller) Apply(cfg params.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Mode != c.cfg.Mode {
		c.SetMode(cfg.Mode)
	}
	if cfg.Theme != c.cfg.Theme {
		c.SetTheme(cfg.Theme)
	}
	if cfg.Sensitivity != c.cfg.Sensitivity {
		c.SetSensitivity(cfg.Sensitivity)
	}
	if cfg.Smoothing != c.cfg.Smoothing {
		c.SetSmoothing(cfg.Smoothing)
	}
	return nil
}

// Close stops any capture and cancels the running loop.
func (c *Controller) Close() {
	c.StopListening()
	c.cancelLoop()
	c.publish()
}

func (c *Controller) captureFrame(now time.Time) {
	if !c.session.Stream.Active() {
		// Every track was stopped from outside, e.g. the device went away.
		c.log.Info("capture source ended")
		c.StopListening()
		return
	}
	c.setLoop(c.sched.RequestFrame(c.captureFrame))
	c.prof.beginFrame()

	an := c.session.Analyzer
	c.snap = an.Pull(c.snap)
	c.features = analyzer.GateFeatures(analyzer.Summarize(c.snap, an.BinFrequency(1)), featureFloor)
	c.prof.markSection(StateCapturing, "analyze")

	c.engine.Render(c.surface, c.snap, c.cfg)
	c.prof.markSection(StateCapturing, "render")

	c.frameDone(now, FrameInfo{State: StateCapturing, At: now, Snapshot: c.snap, Features: c.features})
}

func (c *Controller) idleFrame(now time.Time) {
	c.setLoop(c.sched.RequestFrame(c.idleFrame))
	c.prof.beginFrame()

	c.ambient.Draw(c.surface, theme.ColorsFor(c.cfg.Theme), now.Sub(c.idleEpoch))
	c.prof.markSection(StateIdle, "ambient")

	c.frameDone(now, FrameInfo{State: StateIdle, At: now})
}

func (c *Controller) frameDone(now time.Time, info FrameInfo) {
	if !c.lastFrame.IsZero() {
		if dt := now.Sub(c.lastFrame).Seconds(); dt > 0 {
			inst := 1 / dt
			if c.fps == 0 {
				c.fps = inst
			} else {
				c.fps = c.fps*0.9 + inst*0.1
			}
		}
	}
	c.lastFrame = now
	c.publish()

	if c.onFrame != nil {
		c.onFrame(info)
		c.prof.markSection(info.State, "present")
	}
	c.prof.endFrame(info.State)
}

func (c *Controller) resumeIdle() {
	c.cancelLoop()
	c.idleEpoch = c.now()
	c.setLoop(c.sched.RequestFrame(c.idleFrame))
}

func (c *Controller) cancelLoop() {
	if c.loop != 0 {
		c.sched.CancelFrame(c.loop)
	}
	c.setLoop(0)
}

func (c *Controller) setLoop(id FrameID) {
	c.loop = id
	c.loopID.Store(uint64(id))
}

func (c *Controller) publish() {
	st := &Status{
		State:       c.state.String(),
		Capturing:   c.state == StateCapturing,
		Mode:        c.cfg.Mode,
		Theme:       c.cfg.Theme,
		Colors:      theme.HexFor(c.cfg.Theme),
		Sensitivity: c.cfg.Sensitivity,
		Smoothing:   c.cfg.Smoothing,
		LastError:   c.lastError,
		Features:    c.features,
		FPS:         c.fps,
	}
	if c.session != nil {
		st.Source = c.session.Source.Label()
		st.SampleRate = c.session.SampleRate
	}
	c.status.Store(st)
}
