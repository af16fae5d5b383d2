package render

import (
	"image/color"
	"math"
	"time"

	"github.com/guidoenr/tabviz/internal/theme"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// AmbientGlows is the number of drifting glows in the idle animation.
const AmbientGlows = 5

var ambientFade = Solid(color.NRGBA{A: 26})

// Ambient is the idle animation: soft glows drifting on a clock, not on audio.
type Ambient struct{}

// Draw renders the idle frame at elapsed time since the animation started.
func (Ambient) Draw(s Surface, colors []colorful.Color, elapsed time.Duration) {
	w, h := s.Size()
	width, height := float64(w), float64(h)
	minDim := math.Min(width, height)
	t := elapsed.Seconds()

	s.Fill(ambientFade)
	frame := Frame{Colors: colors}
	for i := 0; i < AmbientGlows; i++ {
		center, radius := ambientGlow(i, t, width, height, minDim)
		c := frame.color(i)
		s.Disc(center, radius, theme.RadialGradient{
			CX: center.X, CY: center.Y, R0: 0, R1: radius,
			Stops: []theme.Stop{
				{Offset: 0, Color: c, Alpha: 0.25},
				{Offset: 1, Color: theme.Transparent, Alpha: 0},
			},
		}, Glow{})
	}
}

func ambientGlow(i int, t, width, height, minDim float64) (Point, float64) {
	fi := float64(i)
	x := width/2 + math.Sin(t*0.3+fi*1.3)*width*0.35
	y := height/2 + math.Cos(t*0.2+fi*0.9)*height*0.35
	r := minDim * (0.15 + 0.08*math.Sin(t*0.5+fi))
	return Point{X: x, Y: y}, r
}
