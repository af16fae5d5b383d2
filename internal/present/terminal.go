package present

import (
	"bufio"
	"image"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// CellPixels is the number of canvas pixels folded into one terminal
// half-cell along each axis.
const CellPixels = 4

const halfBlock = '▀'

// TerminalOptions configures a Terminal.
type TerminalOptions struct {
	// Color draws half-block cells in 256 colours. Without it every cell is
	// a glyph picked by brightness from Palette.
	Color     bool
	Palette   string
	StatusBar bool
}

// Terminal draws frames as text, two canvas rows per terminal row.
type Terminal struct {
	out    *bufio.Writer
	opts   TerminalOptions
	ramp   []rune
	style  lipgloss.Style
	cols   int
	rows   int
	lines  []string
	closed bool
	mu     sync.Mutex
}

var _ Sink = (*Terminal)(nil)

// NewTerminal writes frames to out. The status style is detected from out.
func NewTerminal(out io.Writer, opts TerminalOptions) *Terminal {
	renderer := lipgloss.NewRenderer(out)
	return &Terminal{
		out:  bufio.NewWriterSize(out, 64*1024),
		opts: opts,
		ramp: Palette(opts.Palette),
		style: renderer.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#101010")).
			Padding(0, 1),
	}
}

// CanvasSize returns the canvas size that maps onto a terminal of cols x rows.
func (t *Terminal) CanvasSize(cols, rows int) (int, int) {
	if t.opts.StatusBar && rows > 1 {
		rows--
	}
	return max(cols, 1) * CellPixels, max(rows, 1) * 2 * CellPixels
}

// Present converts f.Image to terminal cells and repaints the screen.
func (t *Terminal) Present(f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || f.Image == nil {
		return nil
	}

	b := f.Image.Bounds()
	t.cols = max(b.Dx()/CellPixels, 1)
	t.rows = max(b.Dy()/(2*CellPixels), 1)
	t.rasterize(f.Image)

	moveCursorHome(t.out)
	for _, line := range t.lines {
		t.out.WriteString(line)
		t.out.WriteByte('\n')
	}
	if t.opts.StatusBar {
		t.out.WriteString(t.statusLine(f.Status, f.Accent))
	}
	return t.out.Flush()
}

// Close stops further output.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return t.out.Flush()
}

func (t *Terminal) statusLine(text, accent string) string {
	style := t.style.Width(t.cols).MaxWidth(t.cols)
	if accent != "" {
		style = style.Background(lipgloss.Color(accent))
	}
	return style.Render(text)
}

// rasterize fills t.lines from img, spreading rows over the available cores.
func (t *Terminal) rasterize(img *image.RGBA) {
	if len(t.lines) != t.rows {
		t.lines = make([]string, t.rows)
	}
	numWorkers := min(runtime.GOMAXPROCS(0), t.rows)

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var builder strings.Builder
			for y := range rowJobs {
				builder.Reset()
				t.row(&builder, img, y)
				t.lines[y] = builder.String()
			}
		}()
	}
	for y := 0; y < t.rows; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()
}

func (t *Terminal) row(builder *strings.Builder, img *image.RGBA, y int) {
	builder.Grow(t.cols * 12)
	top := y * 2 * CellPixels
	bottom := top + CellPixels
	lastFG, lastBG := -1, -1
	for x := 0; x < t.cols; x++ {
		left := x * CellPixels
		ur, ug, ub := average(img, left, top)
		lr, lg, lb := average(img, left, bottom)
		if !t.opts.Color {
			lum := (luminance(ur, ug, ub) + luminance(lr, lg, lb)) / 2
			builder.WriteRune(glyph(t.ramp, lum))
			continue
		}
		fg := rgbToANSI(ur, ug, ub)
		bg := rgbToANSI(lr, lg, lb)
		if fg != lastFG {
			builder.WriteString(fgCode(fg))
			lastFG = fg
		}
		if bg != lastBG {
			builder.WriteString(bgCode(bg))
			lastBG = bg
		}
		builder.WriteRune(halfBlock)
	}
	if t.opts.Color {
		builder.WriteString(resetANSI)
	}
}

// average returns the mean colour of the CellPixels square at (x0, y0).
func average(img *image.RGBA, x0, y0 int) (float64, float64, float64) {
	b := img.Bounds()
	var r, g, bl, n int
	for y := y0; y < y0+CellPixels && y < b.Max.Y; y++ {
		offset := img.PixOffset(x0, y)
		for x := x0; x < x0+CellPixels && x < b.Max.X; x++ {
			r += int(img.Pix[offset])
			g += int(img.Pix[offset+1])
			bl += int(img.Pix[offset+2])
			offset += 4
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	scale := float64(n) * 255
	return float64(r) / scale, float64(g) / scale, float64(bl) / scale
}

func luminance(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}
