//go:build !sdl

package present

import "errors"

// WindowSupported reports whether this build includes the SDL window.
func WindowSupported() bool { return false }

// Window is unavailable without the sdl build tag.
type Window struct{}

var _ Sink = (*Window)(nil)

// NewWindow always fails in builds without SDL.
func NewWindow(string, int, int, func(rune)) (*Window, error) {
	return nil, errors.New("window backend not enabled; rebuild with -tags sdl")
}

func (w *Window) Size() (int, int)    { return 0, 0 }
func (w *Window) Present(Frame) error { return ErrQuit }
func (w *Window) Close() error        { return nil }
