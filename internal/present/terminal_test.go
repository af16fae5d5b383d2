package present

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestRGBToANSI(t *testing.T) {
	assert.Equal(t, 232, rgbToANSI(0, 0, 0))
	assert.Equal(t, 255, rgbToANSI(1, 1, 1))
	assert.Equal(t, 196, rgbToANSI(1, 0, 0))
	assert.Equal(t, 21, rgbToANSI(0, 0, 1))
	assert.Equal(t, 16+36*5+6*0+5, rgbToANSI(1, 0, 1))
}

func TestCanvasSizeReservesStatusRow(t *testing.T) {
	term := NewTerminal(&bytes.Buffer{}, TerminalOptions{StatusBar: true})
	w, h := term.CanvasSize(80, 25)
	assert.Equal(t, 80*CellPixels, w)
	assert.Equal(t, 24*2*CellPixels, h)

	plain := NewTerminal(&bytes.Buffer{}, TerminalOptions{})
	w, h = plain.CanvasSize(0, 0)
	assert.Equal(t, CellPixels, w)
	assert.Equal(t, 2*CellPixels, h)
}

func TestPresentHalfBlocksInColor(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, TerminalOptions{Color: true})

	img := solidImage(3*CellPixels, 2*2*CellPixels, color.RGBA{A: 255})
	// Top half of the first row red, bottom half blue.
	draw.Draw(img, image.Rect(0, 0, 3*CellPixels, CellPixels), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, CellPixels, 3*CellPixels, 2*CellPixels), image.NewUniform(color.RGBA{B: 255, A: 255}), image.Point{}, draw.Src)

	require.NoError(t, term.Present(Frame{Image: img}))

	text := strings.TrimPrefix(out.String(), "\x1b[H")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, fgCode(196)+bgCode(21)+"▀▀▀"+resetANSI, lines[0])
	assert.Equal(t, fgCode(232)+bgCode(232)+"▀▀▀"+resetANSI, lines[1])
}

func TestPresentGlyphsWithoutColor(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, TerminalOptions{Palette: "box"})

	img := solidImage(2*CellPixels, 2*CellPixels, color.RGBA{A: 255})
	draw.Draw(img, image.Rect(CellPixels, 0, 2*CellPixels, 2*CellPixels), image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}), image.Point{}, draw.Src)

	require.NoError(t, term.Present(Frame{Image: img}))
	assert.Equal(t, "\x1b[H █\n", out.String())
}

func TestStatusBarIsPaddedToWidth(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, TerminalOptions{StatusBar: true})
	img := solidImage(20*CellPixels, 2*CellPixels, color.RGBA{A: 255})

	require.NoError(t, term.Present(Frame{Image: img, Status: "bars | neon", Accent: "#ff00ff"}))
	lines := strings.Split(out.String(), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "bars | neon")
	assert.Equal(t, 20, len([]rune(lines[1])))
}

func TestClosedTerminalIgnoresFrames(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, TerminalOptions{})
	require.NoError(t, term.Close())
	require.NoError(t, term.Present(Frame{Image: solidImage(8, 8, color.RGBA{A: 255})}))
	assert.Empty(t, out.String())
}

func TestPaletteFallback(t *testing.T) {
	assert.Equal(t, Palette("default"), Palette("missing"))
	assert.Equal(t, []string{"box", "default", "lines", "spark"}, PaletteNames())
	ramp := Palette("box")
	assert.Equal(t, ' ', glyph(ramp, -1))
	assert.Equal(t, '█', glyph(ramp, 2))
}

func TestScreenHelpers(t *testing.T) {
	var out bytes.Buffer
	EnterScreen(&out)
	LeaveScreen(&out)
	assert.Contains(t, out.String(), "\x1b[?1049h")
	assert.Contains(t, out.String(), "\x1b[?1049l")
}
