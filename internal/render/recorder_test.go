package render

import "image/color"

type op struct {
	kind   string
	x, y   float64
	w, h   float64
	radius float64
	width  float64
	a, b   Point
	pts    []Point
	text   string
	paint  Paint
	glow   Glow
}

// recorder is a Surface that remembers every call.
type recorder struct {
	width, height int
	ops           []op
}

func newRecorder(w, h int) *recorder { return &recorder{width: w, height: h} }

func (r *recorder) Size() (int, int) { return r.width, r.height }

func (r *recorder) Fill(paint Paint) {
	r.ops = append(r.ops, op{kind: "fill", paint: paint})
}

func (r *recorder) Bar(x, y, w, h, radius float64, paint Paint, glow Glow) {
	r.ops = append(r.ops, op{kind: "bar", x: x, y: y, w: w, h: h, radius: radius, paint: paint, glow: glow})
}

func (r *recorder) Line(a, b Point, width float64, paint Paint, glow Glow) {
	r.ops = append(r.ops, op{kind: "line", a: a, b: b, width: width, paint: paint, glow: glow})
}

func (r *recorder) Polyline(pts []Point, width float64, paint Paint, glow Glow) {
	cp := make([]Point, len(pts))
	copy(cp, pts)
	r.ops = append(r.ops, op{kind: "polyline", pts: cp, width: width, paint: paint, glow: glow})
}

func (r *recorder) Disc(center Point, radius float64, paint Paint, glow Glow) {
	r.ops = append(r.ops, op{kind: "disc", a: center, radius: radius, paint: paint, glow: glow})
}

func (r *recorder) Text(at Point, text string, paint Paint) {
	r.ops = append(r.ops, op{kind: "text", a: at, text: text, paint: paint})
}

func (r *recorder) only(kind string) []op {
	var out []op
	for _, o := range r.ops {
		if o.kind == kind {
			out = append(out, o)
		}
	}
	return out
}

func (r *recorder) reset() { r.ops = nil }

func solidColor(p Paint) color.NRGBA { return p.ColorAt(0, 0) }
