//go:build sdl

package present

import (
	"github.com/veandco/go-sdl2/sdl"
)

// WindowSupported reports whether this build includes the SDL window.
func WindowSupported() bool { return true }

// Window shows frames in a native SDL window.
type Window struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	width    int
	height   int
	title    string
	onKey    func(rune)
}

var _ Sink = (*Window)(nil)

// NewWindow opens a window of the given size. onKey receives typed
// characters and may be nil.
func NewWindow(title string, width, height int, onKey func(rune)) (*Window, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, err
	}
	window, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, err
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, err
	}
	return &Window{window: window, renderer: renderer, title: title, onKey: onKey}, nil
}

// Size returns the current drawable size of the window.
func (w *Window) Size() (int, int) {
	width, height := w.window.GetSize()
	return int(width), int(height)
}

// Present uploads f.Image and polls window events.
func (w *Window) Present(f Frame) error {
	if f.Image == nil {
		return w.poll()
	}
	b := f.Image.Bounds()
	if err := w.ensureTexture(b.Dx(), b.Dy()); err != nil {
		return err
	}
	if f.Status != "" && f.Status != w.title {
		w.window.SetTitle(f.Status)
		w.title = f.Status
	}
	if err := w.texture.Update(nil, f.Image.Pix, f.Image.Stride); err != nil {
		return err
	}
	if err := w.renderer.Clear(); err != nil {
		return err
	}
	if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
		return err
	}
	w.renderer.Present()
	return w.poll()
}

func (w *Window) poll() error {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return ErrQuit
		case *sdl.TextInputEvent:
			if w.onKey != nil {
				for _, r := range e.GetText() {
					w.onKey(r)
				}
			}
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				return ErrQuit
			}
		}
	}
	return nil
}

func (w *Window) ensureTexture(width, height int) error {
	if w.texture != nil && w.width == width && w.height == height {
		return nil
	}
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	tex, err := w.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(width), int32(height),
	)
	if err != nil {
		return err
	}
	w.texture = tex
	w.width = width
	w.height = height
	return nil
}

// Close destroys the window and its GPU resources.
func (w *Window) Close() error {
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	if w.renderer != nil {
		w.renderer.Destroy()
		w.renderer = nil
	}
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}
