package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/tabviz/internal/audio"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/present"
	"github.com/guidoenr/tabviz/internal/render"
	"github.com/guidoenr/tabviz/internal/theme"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const (
	defaultCanvasWidth  = 640
	defaultCanvasHeight = 360

	sensitivityStep = 0.1
	smoothingStep   = 0.05
)

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(title, text string) error
}

// Config configures the application runtime.
type Config struct {
	// Width and Height fix the canvas size in pixels. Zero follows the
	// terminal or window size.
	Width     int           `validate:"gte=0,lte=8192"`
	Height    int           `validate:"gte=0,lte=8192"`
	TargetFPS float64       `validate:"gt=0,lte=240"`
	Visual    params.Config `validate:"required"`

	// Terminal draws frames on Output using half-block cells.
	Terminal  bool
	Output    io.Writer `validate:"-"`
	Color     bool
	Palette   string `validate:"omitempty,oneof=box default lines spark"`
	StatusBar bool
	// Window opens an SDL window; needs a build with -tags sdl.
	Window bool
	// Keyboard reads single key presses from the controlling terminal.
	Keyboard bool

	AutoStart   bool
	ProfilePath string

	Platform audio.Platform `validate:"required"`
	Alerter  Alerter        `validate:"-"`
	Sinks    []present.Sink `validate:"-"`
	Log      *logrus.Logger `validate:"-"`
	Seed     int64
}

var configValidator = params.NewValidator()

// Validate checks ranges and required collaborators.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid app config: %w", err)
	}
	return nil
}

type inputEvent int

const (
	inputEventToggle inputEvent = iota
	inputEventModeBars
	inputEventModeWave
	inputEventModeCircular
	inputEventModeParticles
	inputEventNextMode
	inputEventNextTheme
	inputEventRandomize
	inputEventSensitivityUp
	inputEventSensitivityDown
	inputEventSmoothingUp
	inputEventSmoothingDown
	inputEventQuit
)

// App ties together capture, the lifecycle controller, the canvas and the
// presenters, all driven from one loop goroutine.
type App struct {
	cfg         Config
	log         *logrus.Logger
	sched       *Scheduler
	canvas      *render.Canvas
	ctrl        *Controller
	terminal    *present.Terminal
	window      *present.Window
	sinks       []present.Sink
	prof        *profiler
	rng         *rand.Rand
	inputEvents chan inputEvent
	quit        bool
	ctx         context.Context
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.Visual == (params.Config{}) {
		cfg.Visual = params.Defaults()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	width, height := cfg.Width, cfg.Height
	if width <= 0 || height <= 0 {
		width, height = defaultCanvasWidth, defaultCanvasHeight
	}

	a := &App{
		cfg:    cfg,
		log:    cfg.Log,
		sched:  NewScheduler(),
		canvas: render.NewCanvas(width, height),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		prof:   newProfiler(cfg.ProfilePath, cfg.Log),
		ctx:    context.Background(),
	}

	if cfg.Window {
		window, err := present.NewWindow("tabviz", width, height, a.onWindowKey)
		if err != nil {
			return nil, fmt.Errorf("open window: %w", err)
		}
		a.window = window
		a.sinks = append(a.sinks, window)
	}
	if cfg.Terminal {
		a.terminal = present.NewTerminal(cfg.Output, present.TerminalOptions{
			Color:     cfg.Color,
			Palette:   cfg.Palette,
			StatusBar: cfg.StatusBar,
		})
		a.sinks = append(a.sinks, a.terminal)
	}
	a.sinks = append(a.sinks, cfg.Sinks...)

	a.ctrl = NewController(ControllerOptions{
		Platform:  cfg.Platform,
		Scheduler: a.sched,
		Surface:   a.canvas,
		Engine:    render.NewEngine(rand.New(rand.NewSource(cfg.Seed + 1))),
		Config:    cfg.Visual,
		Log:       cfg.Log,
		OnFrame:   a.present,
		profiler:  a.prof,
	})

	a.log.WithFields(logrus.Fields{
		"canvas": fmt.Sprintf("%dx%d", width, height),
		"fps":    cfg.TargetFPS,
		"mode":   cfg.Visual.Mode,
		"theme":  cfg.Visual.Theme,
		"sinks":  len(a.sinks),
	}).Debug("app ready")
	return a, nil
}

// Run drives the frame loop until the context is cancelled or the user quits.
func (a *App) Run(ctx context.Context) error {
	a.ctx = ctx
	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	if a.terminal != nil {
		present.EnterScreen(a.cfg.Output)
		defer present.LeaveScreen(a.cfg.Output)
	}

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	if a.cfg.Keyboard {
		a.startInputListener(inputCtx)
	}
	a.ensureDimensions()

	if a.cfg.AutoStart {
		a.startAsync(ctx, nil)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			a.handleInput(evt)
		case <-a.sched.Wake():
			a.sched.RunTasks()
		case now := <-ticker.C:
			a.ensureDimensions()
			a.sched.Step(now)
		}
		if a.quit {
			return nil
		}
	}
}

// AddSink attaches another presenter. It must be called before Run.
func (a *App) AddSink(s present.Sink) {
	a.sinks = append(a.sinks, s)
}

// Close releases held resources.
func (a *App) Close() error {
	a.ctrl.Close()
	var errs []error
	for _, s := range a.sinks {
		errs = append(errs, s.Close())
	}
	errs = append(errs, a.prof.Close())
	return errors.Join(errs...)
}

// Status returns the controller status. Safe from any goroutine.
func (a *App) Status() Status {
	return a.ctrl.Status()
}

// Start begins capture from any goroutine and waits for the grant to resolve.
// The frame loop keeps running while the permission prompt is open.
func (a *App) Start(ctx context.Context) error {
	result := make(chan error, 1)
	a.sched.Post(func() {
		a.startAsync(ctx, func(err error) { result <- err })
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends capture from any goroutine.
func (a *App) Stop(ctx context.Context) error {
	return a.call(ctx, func() error {
		a.ctrl.StopListening()
		return nil
	})
}

// Apply replaces the visualization settings from any goroutine.
func (a *App) Apply(ctx context.Context, cfg params.Config) error {
	return a.call(ctx, func() error { return a.ctrl.Apply(cfg) })
}

func (a *App) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	a.sched.Post(func() { result <- fn() })
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) startAsync(ctx context.Context, done func(error)) {
	a.ctrl.StartListeningAsync(ctx, func(err error) {
		if err != nil && !errors.Is(err, ErrStartAborted) && !errors.Is(err, ErrStartInProgress) {
			a.alert(err)
		}
		if done != nil {
			done(err)
		}
	})
}

func (a *App) alert(err error) {
	if a.cfg.Alerter == nil {
		return
	}
	msg := audio.UserMessage(err)
	go func() {
		if aerr := a.cfg.Alerter.Alert("tabviz", msg); aerr != nil {
			a.log.WithError(aerr).Debug("alert not shown")
		}
	}()
}

// present hands the composed canvas to every sink.
func (a *App) present(info FrameInfo) {
	st := a.ctrl.Status()
	frame := present.Frame{
		Image:  a.canvas.Image(),
		Status: statusText(st),
		Accent: firstOr(st.Colors, ""),
	}
	kept := a.sinks[:0]
	for _, s := range a.sinks {
		err := s.Present(frame)
		switch {
		case err == nil:
			kept = append(kept, s)
		case errors.Is(err, present.ErrQuit):
			a.quit = true
			kept = append(kept, s)
		default:
			a.log.WithError(err).Warn("presenter failed, detaching it")
			_ = s.Close()
		}
	}
	a.sinks = kept
}

func statusText(st Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s | %s | sens %.1f smooth %.2f",
		strings.ToUpper(st.State), st.Mode, st.Theme, st.Sensitivity, st.Smoothing)
	if st.Capturing {
		fmt.Fprintf(&b, " | bass %.2f mid %.2f treble %.2f", st.Features.Bass, st.Features.Mid, st.Features.Treble)
	}
	fmt.Fprintf(&b, " | fps %.0f", st.FPS)
	if st.Source != "" {
		fmt.Fprintf(&b, " | src=%s", st.Source)
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, " | %s", st.LastError)
	}
	return b.String()
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}

func (a *App) ensureDimensions() {
	if a.cfg.Width > 0 && a.cfg.Height > 0 {
		return
	}
	var w, h int
	switch {
	case a.window != nil:
		w, h = a.window.Size()
	case a.terminal != nil:
		f, ok := a.cfg.Output.(*os.File)
		if !ok {
			return
		}
		cols, rows, err := term.GetSize(int(f.Fd()))
		if err != nil || cols <= 0 || rows <= 0 {
			return
		}
		w, h = a.terminal.CanvasSize(cols, rows)
	default:
		return
	}
	if w <= 0 || h <= 0 {
		return
	}
	if cw, ch := a.canvas.Size(); cw == w && ch == h {
		return
	}
	a.canvas.Resize(w, h)
	a.log.WithFields(logrus.Fields{"width": w, "height": h}).Debug("canvas resized")
}

func (a *App) handleInput(evt inputEvent) {
	cfg := a.ctrl.Config()
	switch evt {
	case inputEventToggle:
		if a.ctrl.State() == StateIdle {
			a.startAsync(a.ctx, nil)
		} else {
			a.ctrl.StopListening()
		}
	case inputEventModeBars:
		a.ctrl.SetMode(params.ModeBars)
	case inputEventModeWave:
		a.ctrl.SetMode(params.ModeWave)
	case inputEventModeCircular:
		a.ctrl.SetMode(params.ModeCircular)
	case inputEventModeParticles:
		a.ctrl.SetMode(params.ModeParticles)
	case inputEventNextMode:
		a.ctrl.SetMode(cfg.Mode.Next())
	case inputEventNextTheme:
		a.ctrl.SetTheme(nextTheme(cfg.Theme))
	case inputEventRandomize:
		a.randomizeVisuals()
	case inputEventSensitivityUp:
		a.ctrl.SetSensitivity(cfg.Sensitivity + sensitivityStep)
	case inputEventSensitivityDown:
		a.ctrl.SetSensitivity(cfg.Sensitivity - sensitivityStep)
	case inputEventSmoothingUp:
		a.ctrl.SetSmoothing(cfg.Smoothing + smoothingStep)
	case inputEventSmoothingDown:
		a.ctrl.SetSmoothing(cfg.Smoothing - smoothingStep)
	case inputEventQuit:
		a.quit = true
	}
}

// onWindowKey runs on the loop goroutine, inside the window's Present.
func (a *App) onWindowKey(r rune) {
	if evt, ok := keyEvent(r, 0); ok {
		a.handleInput(evt)
	}
}

func keyEvent(char rune, key keyboard.Key) (inputEvent, bool) {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return inputEventQuit, true
	case key == keyboard.KeySpace || char == ' ':
		return inputEventToggle, true
	}
	switch char {
	case 'q', 'Q':
		return inputEventQuit, true
	case '1':
		return inputEventModeBars, true
	case '2':
		return inputEventModeWave, true
	case '3':
		return inputEventModeCircular, true
	case '4':
		return inputEventModeParticles, true
	case 'm', 'M':
		return inputEventNextMode, true
	case 't', 'T':
		return inputEventNextTheme, true
	case 'r', 'R':
		return inputEventRandomize, true
	case '+', '=':
		return inputEventSensitivityUp, true
	case '-', '_':
		return inputEventSensitivityDown, true
	case ']':
		return inputEventSmoothingUp, true
	case '[':
		return inputEventSmoothingDown, true
	}
	return 0, false
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.WithError(err).Warn("keyboard input disabled")
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			evt, ok := keyEvent(char, key)
			if !ok {
				continue
			}
			if evt == inputEventQuit {
				events <- evt
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

func (a *App) randomizeVisuals() {
	cfg := a.ctrl.Config()
	mode := pickRandom(params.ModeNames(), string(cfg.Mode), a.rng)
	name := pickRandom(theme.Names(), cfg.Theme, a.rng)

	a.ctrl.SetMode(params.Mode(mode))
	a.ctrl.SetTheme(name)

	a.log.WithFields(logrus.Fields{"mode": mode, "theme": name}).Info("randomized visuals")
}

func nextTheme(current string) string {
	names := theme.Names()
	for i, name := range names {
		if name == current {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}

func pickRandom(options []string, current string, rng *rand.Rand) string {
	if len(options) == 0 {
		return current
	}
	if len(options) == 1 {
		return options[0]
	}
	var choice string
	for attempts := 0; attempts < 4; attempts++ {
		choice = options[rng.Intn(len(options))]
		if !strings.EqualFold(choice, current) {
			return choice
		}
	}
	return options[rng.Intn(len(options))]
}
