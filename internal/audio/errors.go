package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the user declined the capture prompt.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrNoAudioTrack means the grant succeeded but carries no audio.
	ErrNoAudioTrack = errors.New("captured stream has no audio track")
)

// CaptureError wraps any other failure while acquiring a stream.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return "capture failed"
	}
	return fmt.Sprintf("capture failed: %v", e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Classify maps an acquisition error onto the capture taxonomy. Errors that
// already belong to it are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *CaptureError
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNoAudioTrack), errors.As(err, &ce):
		return err
	}
	return &CaptureError{Err: err}
}

// UserMessage returns the text shown to the user for a failed start.
func UserMessage(err error) string {
	var ce *CaptureError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Screen sharing was denied. Click Start again, allow sharing and make sure \"Share audio\" is enabled in the dialog."
	case errors.Is(err, ErrNoAudioTrack):
		return "No audio was shared. When choosing what to share, tick \"Share tab audio\" (or \"Share system audio\") and start again."
	case errors.As(err, &ce):
		return fmt.Sprintf("Could not start audio capture (%v). Please try again.", ce.Err)
	default:
		return fmt.Sprintf("Could not start audio capture (%v). Please try again.", err)
	}
}
