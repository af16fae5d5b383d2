package render

import (
	"image/color"
	"math/rand"
	"testing"
	"time"

	"github.com/guidoenr/tabviz/internal/analyzer"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = Solid(color.NRGBA{R: 255, G: 255, B: 255, A: 255})

func TestCanvasStartsBlackAndResizes(t *testing.T) {
	c := NewCanvas(0, -5)
	w, h := c.Size()
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)

	c.Resize(64, 32)
	w, h = c.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)
	assert.Equal(t, color.RGBA{A: 255}, c.Image().RGBAAt(10, 10))
}

func TestCanvasDiscPaintsCentre(t *testing.T) {
	c := NewCanvas(40, 40)
	c.Disc(Point{X: 20, Y: 20}, 8, white, Glow{})
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, c.Image().RGBAAt(20, 20))
	assert.Equal(t, color.RGBA{A: 255}, c.Image().RGBAAt(2, 2))
}

func TestCanvasZeroHeightBarIsNoop(t *testing.T) {
	c := NewCanvas(20, 20)
	before := append([]uint8(nil), c.Image().Pix...)
	c.Bar(2, 20, 5, 0, 2, white, Glow{Color: color.NRGBA{R: 255, A: 255}, Blur: 10})
	assert.Equal(t, before, c.Image().Pix)
}

func TestCanvasBarAndGlow(t *testing.T) {
	c := NewCanvas(40, 40)
	c.Bar(10, 10, 10, 30, 3, white, Glow{Color: color.NRGBA{R: 255, A: 255}, Blur: 6})
	assert.Equal(t, uint8(255), c.Image().RGBAAt(15, 30).G)
	halo := c.Image().RGBAAt(7, 30)
	assert.Greater(t, halo.R, uint8(0))
	assert.Zero(t, halo.G)
}

func TestCanvasLineAndPolyline(t *testing.T) {
	c := NewCanvas(50, 50)
	c.Line(Point{X: 5, Y: 25}, Point{X: 45, Y: 25}, 3, white, Glow{})
	assert.Equal(t, uint8(255), c.Image().RGBAAt(25, 25).R)

	c.Polyline([]Point{{X: 25, Y: 5}, {X: 25, Y: 15}, {X: 35, Y: 15}}, 2, white, Glow{})
	assert.Equal(t, uint8(255), c.Image().RGBAAt(25, 10).R)
	assert.Equal(t, uint8(255), c.Image().RGBAAt(30, 15).R)
}

func TestCanvasFillFades(t *testing.T) {
	c := NewCanvas(4, 4)
	c.Clear(color.White)
	c.Fill(fadeOverlay)
	px := c.Image().RGBAAt(1, 1)
	require.Less(t, px.R, uint8(255))
	assert.Greater(t, px.R, uint8(150))
}

func TestCanvasTextAndOffscreenShapes(t *testing.T) {
	c := NewCanvas(200, 40)
	c.Text(Point{X: 100, Y: 25}, "no audio", white)
	lit := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < 200; x++ {
			if c.Image().RGBAAt(x, y).R > 0 {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 20)

	c.Disc(Point{X: -500, Y: -500}, 10, white, Glow{})
	c.Line(Point{X: -1e9, Y: 0}, Point{X: 1e9, Y: 0}, 1, white, Glow{})
}

func TestCanvasHairlineSplitsCoverage(t *testing.T) {
	c := NewCanvas(40, 20)
	c.Line(Point{X: 2, Y: 10.5}, Point{X: 38, Y: 10.5}, 1, white, Glow{})
	assert.Equal(t, uint8(255), c.Image().RGBAAt(20, 10).R)
	assert.Zero(t, c.Image().RGBAAt(20, 9).R)
	assert.Zero(t, c.Image().RGBAAt(20, 11).R)

	c.Clear(color.Black)
	c.Line(Point{X: 20, Y: 0}, Point{X: 20, Y: 20}, 1, white, Glow{})
	left, right := c.Image().RGBAAt(19, 8).R, c.Image().RGBAAt(20, 8).R
	assert.InDelta(t, 128, int(left), 2)
	assert.InDelta(t, 128, int(right), 2)
	assert.Zero(t, c.Image().RGBAAt(22, 8).R)
}

func TestCanvasShapesStayInsideTheirBounds(t *testing.T) {
	c := NewCanvas(100, 100)
	c.Disc(Point{X: 30, Y: 30}, 5, white, Glow{Color: color.NRGBA{R: 255, A: 255}, Blur: 4})
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x >= 19 && x <= 41 && y >= 19 && y <= 41 {
				continue
			}
			require.Equal(t, color.RGBA{A: 255}, c.Image().RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
	assert.Equal(t, uint8(255), c.Image().RGBAAt(30, 30).G)
}

func TestCanvasGradientBarUsesRampColours(t *testing.T) {
	c := NewCanvas(40, 100)
	colors := theme.ColorsFor("fire")
	paint := theme.Gradient(theme.Axis{X0: 0, Y0: 100, X1: 0, Y1: 0}, colors[:2])
	c.Bar(10, 0, 20, 100, 0, paint, Glow{})

	for _, y := range []int{5, 50, 95} {
		want := paint.ColorAt(20.5, float64(y)+0.5)
		got := c.Image().RGBAAt(20, y)
		assert.InDelta(t, int(want.R), int(got.R), 2, "row %d", y)
		assert.InDelta(t, int(want.G), int(got.G), 2, "row %d", y)
		assert.InDelta(t, int(want.B), int(got.B), 2, "row %d", y)
	}
}

func TestEngineFrameTimeOnDefaultCanvas(t *testing.T) {
	if testing.Short() {
		t.Skip("timing")
	}
	snap := filled(analyzer.BinCount, 128)
	for _, mode := range []params.Mode{params.ModeBars, params.ModeWave, params.ModeCircular, params.ModeParticles} {
		c := NewCanvas(640, 360)
		e := NewEngine(rand.New(rand.NewSource(3)))
		cfg := config(mode)
		e.Render(c, snap, cfg)

		const frames = 5
		start := time.Now()
		for i := 0; i < frames; i++ {
			e.Render(c, snap, cfg)
		}
		perFrame := time.Since(start) / frames
		assert.Less(t, perFrame, 500*time.Millisecond, mode)
	}
}

func benchmarkMode(b *testing.B, mode params.Mode) {
	snap := filled(analyzer.BinCount, 128)
	c := NewCanvas(640, 360)
	e := NewEngine(rand.New(rand.NewSource(4)))
	cfg := config(mode)
	e.Render(c, snap, cfg)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Render(c, snap, cfg)
	}
}

func BenchmarkRenderBars(b *testing.B)      { benchmarkMode(b, params.ModeBars) }
func BenchmarkRenderWave(b *testing.B)      { benchmarkMode(b, params.ModeWave) }
func BenchmarkRenderCircular(b *testing.B)  { benchmarkMode(b, params.ModeCircular) }
func BenchmarkRenderParticles(b *testing.B) { benchmarkMode(b, params.ModeParticles) }

func BenchmarkAmbient(b *testing.B) {
	c := NewCanvas(640, 360)
	colors := theme.ColorsFor("neon")
	for i := 0; i < b.N; i++ {
		Ambient{}.Draw(c, colors, time.Duration(i)*16*time.Millisecond)
	}
}
