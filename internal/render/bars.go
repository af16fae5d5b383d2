package render

import (
	"math"

	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/theme"
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	// BarCount is the number of slots the width is divided into.
	BarCount = 128

	barHeightRatio = 0.8
	barGlow        = 10
	barMaxRadius   = 4
)

// Bars draws a spectrum of rounded bars rising from the bottom edge.
type Bars struct{}

func (Bars) Name() params.Mode { return params.ModeBars }

func (Bars) Draw(s Surface, f Frame) {
	slot := f.Width / BarCount
	gap := math.Min(2, slot*0.2)
	width := slot - gap
	radius := math.Min(barMaxRadius, width/2)

	for i := 0; i < BarCount; i++ {
		v := f.Snapshot.Level(f.Snapshot.Index(i, BarCount)) * f.Sensitivity
		h := math.Min(v*f.Height*barHeightRatio, f.Height)
		x := float64(i)*slot + gap/2
		y := f.Height - h

		base := f.color(i)
		paint := theme.Gradient(theme.Axis{X0: x, Y0: f.Height, X1: x, Y1: y},
			[]colorful.Color{base, f.color(i + 1)})
		s.Bar(x, y, width, h, radius, paint, Glow{Color: theme.ToNRGBA(base, 1), Blur: barGlow})
	}
}
