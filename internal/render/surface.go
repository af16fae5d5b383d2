package render

import (
	"image/color"
)

// Point is a position in surface pixels.
type Point struct {
	X, Y float64
}

// Paint yields the fill colour at a surface point. Solid colours and the
// theme gradients implement it.
type Paint interface {
	ColorAt(x, y float64) color.NRGBA
}

// Solid is a single-colour paint.
type Solid color.NRGBA

// ColorAt returns the colour regardless of position.
func (s Solid) ColorAt(float64, float64) color.NRGBA { return color.NRGBA(s) }

// Glow is a soft halo drawn underneath a shape. A zero Blur disables it.
type Glow struct {
	Color color.NRGBA
	Blur  float64
}

// Surface is the 2D drawing target the renderers compose a frame on. Its
// size may change between frames; renderers query it every frame.
type Surface interface {
	Size() (width, height int)
	// Fill composites paint over the whole surface.
	Fill(paint Paint)
	// Bar fills a rectangle whose top corners are rounded by radius.
	Bar(x, y, w, h, radius float64, paint Paint, glow Glow)
	Line(a, b Point, width float64, paint Paint, glow Glow)
	Polyline(pts []Point, width float64, paint Paint, glow Glow)
	Disc(center Point, radius float64, paint Paint, glow Glow)
	// Text draws a single line centred horizontally on at, with at.Y as baseline.
	Text(at Point, text string, paint Paint)
}
