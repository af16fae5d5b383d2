package render

import (
	"math"

	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/theme"
)

const (
	waveLines     = 3
	waveAmplitude = 0.4
	waveGlow      = 10
)

var waveWidths = [waveLines]float64{3, 2, 1}

// Wave draws three overlapping traces of the spectrum across the full width.
type Wave struct{}

func (Wave) Name() params.Mode { return params.ModeWave }

func (Wave) Draw(s Surface, f Frame) {
	n := len(f.Snapshot)
	if n == 0 {
		return
	}
	step := f.Width
	if n > 1 {
		step = f.Width / float64(n-1)
	}
	mid := f.Height / 2

	pts := make([]Point, n)
	for line := 0; line < waveLines; line++ {
		// Each trace is damped by its own phase so the three separate visibly.
		mod := 1 - 0.3*math.Sin(float64(line)*0.5)
		for i, v := range f.Snapshot {
			amp := float64(v) / 255 * f.Sensitivity
			y := mid - amp*f.Height*waveAmplitude*mod
			pts[i] = Point{X: float64(i) * step, Y: math.Max(0, math.Min(f.Height, y))}
		}
		c := theme.ToNRGBA(f.color(line), 1)
		s.Polyline(pts, waveWidths[line], Solid(c), Glow{Color: c, Blur: waveGlow})
	}
}
