package theme

import (
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Stop is a colour at a normalized offset along a gradient.
type Stop struct {
	Offset float64
	Color  colorful.Color
	Alpha  float64
}

// Axis is the segment a linear gradient is laid along, in surface pixels.
type Axis struct {
	X0, Y0, X1, Y1 float64
}

// LinearGradient interpolates its stops along an axis. Points are projected
// onto the axis and clamped to its ends.
type LinearGradient struct {
	Axis  Axis
	Stops []Stop
}

// Gradient builds an opaque linear gradient across axis with evenly spaced
// stops: stop i sits at i/(len(colors)-1).
func Gradient(axis Axis, colors []colorful.Color) LinearGradient {
	return LinearGradient{Axis: axis, Stops: EvenStops(colors, 1)}
}

// EvenStops spaces colors evenly over [0,1], all with the given alpha.
func EvenStops(colors []colorful.Color, alpha float64) []Stop {
	stops := make([]Stop, len(colors))
	for i, c := range colors {
		offset := 0.0
		if len(colors) > 1 {
			offset = float64(i) / float64(len(colors)-1)
		}
		stops[i] = Stop{Offset: offset, Color: c, Alpha: alpha}
	}
	return stops
}

// ColorAt returns the gradient colour at surface point (x, y).
func (g LinearGradient) ColorAt(x, y float64) color.NRGBA {
	return sample(g.Stops, g.Offset(x, y))
}

// Offset projects (x, y) onto the axis, clamped to [0,1].
func (g LinearGradient) Offset(x, y float64) float64 {
	dx := g.Axis.X1 - g.Axis.X0
	dy := g.Axis.Y1 - g.Axis.Y0
	lenSq := dx*dx + dy*dy
	if lenSq <= 0 {
		return 0
	}
	return clamp01(((x-g.Axis.X0)*dx + (y-g.Axis.Y0)*dy) / lenSq)
}

// Ramp fills dst with colours sampled at evenly spaced offsets.
func (g LinearGradient) Ramp(dst []color.NRGBA) { ramp(g.Stops, dst) }

// RadialGradient interpolates its stops between an inner and outer radius
// around a shared centre.
type RadialGradient struct {
	CX, CY float64
	R0, R1 float64
	Stops  []Stop
}

// ColorAt returns the gradient colour at surface point (x, y).
func (g RadialGradient) ColorAt(x, y float64) color.NRGBA {
	return sample(g.Stops, g.Offset(x, y))
}

// Offset is the normalized distance of (x, y) between R0 and R1.
func (g RadialGradient) Offset(x, y float64) float64 {
	span := g.R1 - g.R0
	if span <= 0 {
		return 0
	}
	return clamp01((math.Hypot(x-g.CX, y-g.CY) - g.R0) / span)
}

// Ramp fills dst with colours sampled at evenly spaced offsets.
func (g RadialGradient) Ramp(dst []color.NRGBA) { ramp(g.Stops, dst) }

// Transparent is a fully transparent stop colour.
var Transparent = colorful.Color{}

// ToNRGBA converts c with the given alpha in [0,1].
func ToNRGBA(c colorful.Color, alpha float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(clamp01(alpha)*255 + 0.5)}
}

func ramp(stops []Stop, dst []color.NRGBA) {
	last := float64(len(dst) - 1)
	for i := range dst {
		t := 0.0
		if last > 0 {
			t = float64(i) / last
		}
		dst[i] = sample(stops, t)
	}
}

func sample(stops []Stop, t float64) color.NRGBA {
	switch len(stops) {
	case 0:
		return color.NRGBA{}
	case 1:
		return ToNRGBA(stops[0].Color, stops[0].Alpha)
	}
	t = clamp01(t)
	if t <= stops[0].Offset {
		return ToNRGBA(stops[0].Color, stops[0].Alpha)
	}
	for i := 1; i < len(stops); i++ {
		hi := stops[i]
		if t > hi.Offset {
			continue
		}
		lo := stops[i-1]
		span := hi.Offset - lo.Offset
		f := 1.0
		if span > 0 {
			f = (t - lo.Offset) / span
		}
		// Fading into a transparent stop keeps the opaque neighbour's hue.
		from, to := lo.Color, hi.Color
		if lo.Alpha == 0 {
			from = to
		}
		if hi.Alpha == 0 {
			to = from
		}
		return ToNRGBA(from.BlendRgb(to, f), lo.Alpha+(hi.Alpha-lo.Alpha)*f)
	}
	last := stops[len(stops)-1]
	return ToNRGBA(last.Color, last.Alpha)
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
