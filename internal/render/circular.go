package render

import (
	"math"

	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/theme"
)

const (
	// Segments is the number of radial lines around the circle.
	Segments = 180

	circularRadiusRatio = 0.3
	circularMaxReach    = 1.5
	circularLineWidth   = 2
	circularGlow        = 8
)

// Circular draws radial segments around a pulsing centre disc.
type Circular struct{}

func (Circular) Name() params.Mode { return params.ModeCircular }

// BaseRadius is 30% of the smaller half-dimension.
func BaseRadius(width, height float64) float64 {
	return math.Min(width, height) / 2 * circularRadiusRatio
}

func (Circular) Draw(s Surface, f Frame) {
	cx, cy := f.Width/2, f.Height/2
	base := BaseRadius(f.Width, f.Height)

	for i := 0; i < Segments; i++ {
		v := f.Snapshot.Level(f.Snapshot.Index(i, Segments)) * f.Sensitivity
		length := math.Min(v, 1) * base * circularMaxReach
		sin, cos := math.Sincos(float64(i) / Segments * 2 * math.Pi)

		a := Point{X: cx + cos*base, Y: cy + sin*base}
		b := Point{X: cx + cos*(base+length), Y: cy + sin*(base+length)}
		c := theme.ToNRGBA(f.color(i), 1)
		s.Line(a, b, circularLineWidth, Solid(c), Glow{Color: c, Blur: circularGlow})
	}

	pulse := PulseRadius(base, f.Snapshot.Intensity(), f.Sensitivity)
	s.Disc(Point{X: cx, Y: cy}, pulse, theme.RadialGradient{
		CX: cx, CY: cy, R0: 0, R1: pulse,
		Stops: []theme.Stop{
			{Offset: 0, Color: f.color(0), Alpha: 0.6},
			{Offset: 0.5, Color: f.color(1), Alpha: 0.35},
			{Offset: 1, Color: theme.Transparent, Alpha: 0},
		},
	}, Glow{})
}

// PulseRadius grows the centre disc with the average intensity.
func PulseRadius(base, intensity, sensitivity float64) float64 {
	return base * (0.2 + 0.8*math.Min(intensity*sensitivity, 1))
}
