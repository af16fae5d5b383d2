package present

import (
	"errors"
	"image"
)

// ErrQuit is returned by a presenter whose output was closed by the user.
var ErrQuit = errors.New("presenter closed")

// Frame is one composed picture plus the status line describing it.
type Frame struct {
	Image  *image.RGBA
	Status string
	// Accent is a "#rrggbb" colour used to tint the status line.
	Accent string
}

// Sink receives every composed frame.
type Sink interface {
	Present(f Frame) error
	Close() error
}
