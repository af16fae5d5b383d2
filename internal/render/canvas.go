package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const (
	glowLayers = 3
	glowAlpha  = 0.12
	// kappa places cubic control points for a quarter circle.
	kappa = 0.5522847498
)

// rampSize is the resolution of the colour table gradients are sampled through.
const rampSize = 256

// Canvas is a software Surface backed by an RGBA image. Shapes are
// anti-aliased with a vector rasterizer sized to each shape's bounds.
type Canvas struct {
	img  *image.RGBA
	ras  *vector.Rasterizer
	mask *image.Alpha
	// clip is the pixel box the rasterizer currently covers.
	clip image.Rectangle
	ramp [rampSize]color.NRGBA
	face font.Face
}

var _ Surface = (*Canvas)(nil)

// rampPaint is a Paint whose colour depends only on a scalar offset, so it
// can be sampled through a precomputed table.
type rampPaint interface {
	Paint
	Offset(x, y float64) float64
	Ramp(dst []color.NRGBA)
}

// NewCanvas allocates a black canvas. Non-positive sizes are raised to 1.
func NewCanvas(width, height int) *Canvas {
	width, height = max(width, 1), max(height, 1)
	c := &Canvas{
		img:  image.NewRGBA(image.Rect(0, 0, width, height)),
		ras:  vector.NewRasterizer(width, height),
		mask: &image.Alpha{},
		face: basicfont.Face7x13,
	}
	c.Clear(color.Black)
	return c
}

// Resize reallocates the canvas when the size changes. Content is cleared.
func (c *Canvas) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	if w, h := c.Size(); w == width && h == height {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	c.Clear(color.Black)
}

// Size returns the canvas dimensions in pixels.
func (c *Canvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image exposes the pixels. The image is reused across frames.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// Clear replaces every pixel with col.
func (c *Canvas) Clear(col color.Color) {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// Fill composites paint over the whole canvas.
func (c *Canvas) Fill(paint Paint) {
	if s, ok := paint.(Solid); ok {
		draw.Draw(c.img, c.img.Bounds(), image.NewUniform(color.NRGBA(s)), image.Point{}, draw.Over)
		return
	}
	b := c.img.Bounds()
	sample := c.sampler(paint)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := c.img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			i := off + 4*(x-b.Min.X)
			blend(c.img.Pix[i:i+4], sample(float64(x)+0.5, float64(y)+0.5), 255)
		}
	}
}

// Bar fills a rectangle with rounded top corners.
func (c *Canvas) Bar(x, y, w, h, radius float64, paint Paint, glow Glow) {
	if w <= 0 || h <= 0 {
		return
	}
	c.withGlow(glow, func(spread float64) bool {
		if !c.begin(x-spread, y-spread, x+w+spread, y+h) {
			return false
		}
		c.roundedTop(x-spread, y-spread, w+2*spread, h+spread, radius+spread)
		return true
	})
	if c.begin(x, y, x+w, y+h) {
		c.roundedTop(x, y, w, h, radius)
		c.draw(paint)
	}
}

// Line strokes a straight segment.
func (c *Canvas) Line(a, b Point, width float64, paint Paint, glow Glow) {
	if width <= 0 || (a.X == b.X && a.Y == b.Y) {
		return
	}
	if s, ok := paint.(Solid); ok && width <= 1 && !glow.visible() {
		c.hairline(a, b, width, color.NRGBA(s))
		return
	}
	c.withGlow(glow, func(spread float64) bool {
		return c.stroke([]Point{a, b}, width+2*spread)
	})
	if c.stroke([]Point{a, b}, width) {
		c.draw(paint)
	}
}

// Polyline strokes consecutive points as one shape.
func (c *Canvas) Polyline(pts []Point, width float64, paint Paint, glow Glow) {
	if width <= 0 || len(pts) < 2 {
		return
	}
	c.withGlow(glow, func(spread float64) bool {
		return c.stroke(pts, width+2*spread)
	})
	if c.stroke(pts, width) {
		c.draw(paint)
	}
}

// Disc fills a circle.
func (c *Canvas) Disc(center Point, radius float64, paint Paint, glow Glow) {
	if radius <= 0 {
		return
	}
	c.withGlow(glow, func(spread float64) bool {
		return c.disc(center, radius+spread)
	})
	if c.disc(center, radius) {
		c.draw(paint)
	}
}

// Text draws a line of text centred on at.X with baseline at.Y.
func (c *Canvas) Text(at Point, text string, paint Paint) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  c.img,
		Src:  c.source(paint),
		Face: c.face,
	}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.I(int(math.Round(at.X))) - width/2,
		Y: fixed.I(int(math.Round(at.Y))),
	}
	d.DrawString(text)
}

func (g Glow) visible() bool {
	return g.Blur > 0 && g.Color.A > 0
}

// withGlow draws the halo as a few widening solid layers. shape prepares
// the rasterizer for a given spread and reports whether anything is visible.
func (c *Canvas) withGlow(glow Glow, shape func(spread float64) bool) {
	if !glow.visible() {
		return
	}
	layer := glow.Color
	layer.A = uint8(math.Round(float64(glow.Color.A) * glowAlpha))
	if layer.A == 0 {
		return
	}
	for k := glowLayers; k >= 1; k-- {
		if shape(glow.Blur * float64(k) / glowLayers) {
			c.draw(Solid(layer))
		}
	}
}

// begin sizes the rasterizer to the pixel box around the given bounds. It
// reports false when the box misses the canvas.
func (c *Canvas) begin(minX, minY, maxX, maxY float64) bool {
	r := image.Rect(
		pixel(math.Floor(minX))-1, pixel(math.Floor(minY))-1,
		pixel(math.Ceil(maxX))+1, pixel(math.Ceil(maxY))+1,
	).Intersect(c.img.Bounds())
	if r.Empty() {
		return false
	}
	c.clip = r
	c.ras.Reset(r.Dx(), r.Dy())
	return true
}

func (c *Canvas) stroke(pts []Point, width float64) bool {
	minX, minY, maxX, maxY := pts[0].X, pts[0].Y, pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	half := width / 2
	if !c.begin(minX-half, minY-half, maxX+half, maxY+half) {
		return false
	}
	for i := 1; i < len(pts); i++ {
		c.segment(pts[i-1], pts[i], width)
	}
	return true
}

func (c *Canvas) disc(center Point, radius float64) bool {
	if !c.begin(center.X-radius, center.Y-radius, center.X+radius, center.Y+radius) {
		return false
	}
	c.circle(center, radius)
	return true
}

// draw composites paint through the shape added since begin.
func (c *Canvas) draw(paint Paint) {
	if s, ok := paint.(Solid); ok {
		c.ras.Draw(c.img, c.clip, image.NewUniform(color.NRGBA(s)), image.Point{})
		return
	}

	w, h := c.clip.Dx(), c.clip.Dy()
	if n := w * h; cap(c.mask.Pix) < n {
		c.mask.Pix = make([]uint8, n)
	} else {
		c.mask.Pix = c.mask.Pix[:n]
	}
	c.mask.Stride = w
	c.mask.Rect = image.Rect(0, 0, w, h)
	c.ras.DrawOp = draw.Src
	c.ras.Draw(c.mask, c.mask.Rect, image.Opaque, image.Point{})

	sample := c.sampler(paint)
	for y := 0; y < h; y++ {
		row := c.mask.Pix[y*w : (y+1)*w]
		py := c.clip.Min.Y + y
		off := c.img.PixOffset(c.clip.Min.X, py)
		for x, m := range row {
			if m == 0 {
				continue
			}
			i := off + 4*x
			col := sample(float64(c.clip.Min.X+x)+0.5, float64(py)+0.5)
			blend(c.img.Pix[i:i+4], col, uint32(m))
		}
	}
}

// sampler returns a colour lookup for paint, going through the ramp table
// for gradients.
func (c *Canvas) sampler(paint Paint) func(x, y float64) color.NRGBA {
	rp, ok := paint.(rampPaint)
	if !ok {
		return paint.ColorAt
	}
	rp.Ramp(c.ramp[:])
	return func(x, y float64) color.NRGBA {
		return c.ramp[int(rp.Offset(x, y)*(rampSize-1)+0.5)]
	}
}

func (c *Canvas) source(paint Paint) image.Image {
	if s, ok := paint.(Solid); ok {
		return image.NewUniform(color.NRGBA(s))
	}
	return paintImage{paint: paint, bounds: c.img.Bounds()}
}

// hairline draws a segment at most one pixel wide by stepping along its
// major axis and splitting coverage between the two nearest pixels.
func (c *Canvas) hairline(a, b Point, width float64, col color.NRGBA) {
	w, h := c.Size()
	a, b, ok := clipSegment(a, b, -1, -1, float64(w)+1, float64(h)+1)
	if !ok {
		return
	}
	steep := math.Abs(b.Y-a.Y) > math.Abs(b.X-a.X)
	if steep {
		a.X, a.Y = a.Y, a.X
		b.X, b.Y = b.Y, b.X
	}
	if a.X > b.X {
		a, b = b, a
	}
	grad := 0.0
	if dx := b.X - a.X; dx > 0 {
		grad = (b.Y - a.Y) / dx
	}
	for i := int(math.Floor(a.X)); i <= int(math.Floor(b.X)); i++ {
		span := math.Min(float64(i+1), b.X) - math.Max(float64(i), a.X)
		if span <= 0 {
			continue
		}
		top := a.Y + grad*(float64(i)+0.5-a.X) - 0.5
		j := math.Floor(top)
		frac := top - j
		cov := math.Min(span, 1) * width
		c.plot(i, int(j), steep, cov*(1-frac), col)
		c.plot(i, int(j)+1, steep, cov*frac, col)
	}
}

func (c *Canvas) plot(major, minor int, steep bool, coverage float64, col color.NRGBA) {
	x, y := major, minor
	if steep {
		x, y = minor, major
	}
	if !(image.Point{X: x, Y: y}).In(c.img.Rect) {
		return
	}
	m := uint32(math.Min(coverage, 1)*255 + 0.5)
	if m == 0 {
		return
	}
	i := c.img.PixOffset(x, y)
	blend(c.img.Pix[i:i+4], col, m)
}

// blend composites col at coverage m (0-255) over one premultiplied pixel.
func blend(px []uint8, col color.NRGBA, m uint32) {
	a := uint32(col.A) * m / 255
	if a == 0 {
		return
	}
	ia := 255 - a
	px[0] = uint8((uint32(col.R)*a + uint32(px[0])*ia + 127) / 255)
	px[1] = uint8((uint32(col.G)*a + uint32(px[1])*ia + 127) / 255)
	px[2] = uint8((uint32(col.B)*a + uint32(px[2])*ia + 127) / 255)
	px[3] = uint8((255*a + uint32(px[3])*ia + 127) / 255)
}

// clipSegment trims a-b to the given box. It reports false when the
// segment lies outside.
func clipSegment(a, b Point, minX, minY, maxX, maxY float64) (Point, Point, bool) {
	for _, v := range [4]float64{a.X, a.Y, b.X, b.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return a, b, false
		}
	}
	dx, dy := b.X-a.X, b.Y-a.Y
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, a.X - minX},
		{dx, maxX - a.X},
		{-dy, a.Y - minY},
		{dy, maxY - a.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return a, b, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return a, b, false
			}
			t1 = math.Min(t1, r)
		}
	}
	return Point{X: a.X + t0*dx, Y: a.Y + t0*dy}, Point{X: a.X + t1*dx, Y: a.Y + t1*dy}, true
}

func (c *Canvas) roundedTop(x, y, w, h, r float64) {
	r = math.Max(0, math.Min(r, math.Min(w/2, h)))
	c.moveTo(x, y+h)
	c.lineTo(x, y+r)
	c.quadTo(x, y, x+r, y)
	c.lineTo(x+w-r, y)
	c.quadTo(x+w, y, x+w, y+r)
	c.lineTo(x+w, y+h)
	c.ras.ClosePath()
}

func (c *Canvas) segment(a, b Point, width float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2
	c.moveTo(a.X+nx, a.Y+ny)
	c.lineTo(b.X+nx, b.Y+ny)
	c.lineTo(b.X-nx, b.Y-ny)
	c.lineTo(a.X-nx, a.Y-ny)
	c.ras.ClosePath()
}

func (c *Canvas) circle(p Point, r float64) {
	k := kappa * r
	c.moveTo(p.X+r, p.Y)
	c.cubeTo(p.X+r, p.Y+k, p.X+k, p.Y+r, p.X, p.Y+r)
	c.cubeTo(p.X-k, p.Y+r, p.X-r, p.Y+k, p.X-r, p.Y)
	c.cubeTo(p.X-r, p.Y-k, p.X-k, p.Y-r, p.X, p.Y-r)
	c.cubeTo(p.X+k, p.Y-r, p.X+r, p.Y-k, p.X+r, p.Y)
	c.ras.ClosePath()
}

// Path coordinates are relative to the clip box.
func (c *Canvas) moveTo(x, y float64) { c.ras.MoveTo(c.relX(x), c.relY(y)) }
func (c *Canvas) lineTo(x, y float64) { c.ras.LineTo(c.relX(x), c.relY(y)) }

func (c *Canvas) quadTo(bx, by, x, y float64) {
	c.ras.QuadTo(c.relX(bx), c.relY(by), c.relX(x), c.relY(y))
}

func (c *Canvas) cubeTo(bx, by, cx, cy, x, y float64) {
	c.ras.CubeTo(c.relX(bx), c.relY(by), c.relX(cx), c.relY(cy), c.relX(x), c.relY(y))
}

func (c *Canvas) relX(x float64) float32 { return coord(x - float64(c.clip.Min.X)) }
func (c *Canvas) relY(y float64) float32 { return coord(y - float64(c.clip.Min.Y)) }

// pixel converts a rounded coordinate to an int, clamped like coord.
func pixel(v float64) int {
	return int(coord(v))
}

// coord keeps path coordinates finite and within a sane range of the surface.
func coord(v float64) float32 {
	const limit = 1 << 16
	switch {
	case math.IsNaN(v):
		return 0
	case v > limit:
		return limit
	case v < -limit:
		return -limit
	}
	return float32(v)
}

// paintImage adapts a Paint to image.Image for the font drawer.
type paintImage struct {
	paint  Paint
	bounds image.Rectangle
}

func (p paintImage) ColorModel() color.Model { return color.NRGBAModel }
func (p paintImage) Bounds() image.Rectangle { return p.bounds }

func (p paintImage) At(x, y int) color.Color {
	return p.paint.ColorAt(float64(x)+0.5, float64(y)+0.5)
}
