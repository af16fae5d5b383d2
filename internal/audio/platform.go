package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Prompter asks the user to approve a capture grant.
type Prompter interface {
	Confirm(ctx context.Context, title, text string) (bool, error)
}

// PortAudioPlatform grants streams backed by a PortAudio input device. With a
// loopback or monitor source this is the audio of whatever is playing, the
// closest desktop equivalent of a shared tab.
type PortAudioPlatform struct {
	Capture Config
	// Prompt, when set, is asked before every grant. Declining maps to ErrPermissionDenied.
	Prompt Prompter
	Log    *logrus.Logger
}

var _ Platform = (*PortAudioPlatform)(nil)

// RequestDisplayMedia opens the configured device. A machine without any input
// device yields an empty grant, which callers report as ErrNoAudioTrack.
func (p *PortAudioPlatform) RequestDisplayMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CaptureError{Err: err}
	}
	if err := Initialize(); err != nil {
		return nil, &CaptureError{Err: fmt.Errorf("initialize portaudio: %w", err)}
	}

	device, err := findDevice(p.Capture.DeviceName)
	if err != nil && !errors.Is(err, errNoInputDevice) {
		return nil, &CaptureError{Err: err}
	}

	if p.Prompt != nil {
		source := "no input device was found"
		if device != nil {
			source = fmt.Sprintf("%q", device.Name)
		}
		ok, err := p.Prompt.Confirm(ctx, "Share audio",
			fmt.Sprintf("Allow tabviz to listen to the audio playing on this machine?\n\nSource: %s", source))
		if err != nil {
			return nil, &CaptureError{Err: fmt.Errorf("permission prompt: %w", err)}
		}
		if !ok {
			return nil, ErrPermissionDenied
		}
	}

	if device == nil || !c.Audio {
		p.logger().Warn("capture granted without an audio source")
		return NewStream(), nil
	}

	capture, err := openCapture(device, p.Capture)
	if err != nil {
		return nil, &CaptureError{Err: err}
	}
	p.logger().WithFields(logrus.Fields{
		"device":      device.Name,
		"sample_rate": capture.SampleRate(),
		"channels":    capture.channels,
	}).Info("audio capture opened")
	return NewStream(capture), nil
}

func (p *PortAudioPlatform) logger() *logrus.Logger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}
