package render

import (
	"image/color"
	"math/rand"
	"time"

	"github.com/guidoenr/tabviz/internal/analyzer"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/theme"
)

// NoAudioMessage is overlaid whenever the snapshot is entirely zero.
const NoAudioMessage = `No audio detected - make sure "Share tab audio" is enabled`

// fadeOverlay leaves a short trail of the previous frame.
var fadeOverlay = Solid(color.NRGBA{A: 51})

var advisoryPaint = Solid(color.NRGBA{R: 255, G: 255, B: 255, A: 180})

// Engine dispatches frames to the selected mode.
type Engine struct {
	modes   map[params.Mode]Mode
	current params.Mode
}

// NewEngine builds the four modes. A nil rng seeds from the clock.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{modes: newModeRegistry(rng)}
}

// Select switches to mode. Selecting a stateful mode always reseeds it for
// the given surface size, even if it was already selected.
func (e *Engine) Select(mode params.Mode, width, height int) {
	m, ok := e.Mode(mode)
	if !ok {
		mode = params.ModeBars
		m, _ = e.Mode(mode)
	}
	e.current = mode
	if seeder, ok := m.(Seeder); ok {
		seeder.Seed(float64(width), float64(height))
	}
}

// Current returns the selected mode.
func (e *Engine) Current() params.Mode {
	return e.current
}

// Mode returns the renderer registered for name.
func (e *Engine) Mode(name params.Mode) (Mode, bool) {
	m, ok := e.modes[name]
	return m, ok
}

// Render fades the previous frame, draws snap with the configured mode and
// adds the no-audio advisory when snap is silent.
func (e *Engine) Render(s Surface, snap analyzer.Snapshot, cfg params.Config) {
	w, h := s.Size()
	if cfg.Mode != e.current {
		e.Select(cfg.Mode, w, h)
	}

	s.Fill(fadeOverlay)

	frame := Frame{
		Snapshot:    snap,
		Sensitivity: cfg.Sensitivity,
		Colors:      theme.ColorsFor(cfg.Theme),
		Width:       float64(w),
		Height:      float64(h),
	}
	e.modes[e.current].Draw(s, frame)

	if snap.Silent() {
		s.Text(Point{X: frame.Width / 2, Y: frame.Height / 2}, NoAudioMessage, advisoryPaint)
	}
}
