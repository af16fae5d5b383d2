// Package dialog shows native prompts: the capture consent question and the
// blocking alert used for failed starts.
package dialog

import (
	"context"
	"errors"

	"github.com/ncruces/zenity"
	"github.com/sirupsen/logrus"
)

// Native uses the desktop's dialog tooling through zenity.
type Native struct{}

// Confirm asks a yes/no question. Closing the dialog counts as "no".
func (Native) Confirm(ctx context.Context, title, text string) (bool, error) {
	err := zenity.Question(text,
		zenity.Title(title),
		zenity.OKLabel("Share"),
		zenity.CancelLabel("Cancel"),
		zenity.QuestionIcon,
		zenity.Context(ctx),
	)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, zenity.ErrCanceled):
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		return false, err
	}
}

// Alert blocks until the user dismisses the message.
func (Native) Alert(title, text string) error {
	return zenity.Error(text, zenity.Title(title), zenity.ErrorIcon)
}

// AutoApprove grants every request without asking and logs alerts instead of
// showing them. It is used for headless runs.
type AutoApprove struct {
	Log *logrus.Logger
}

// Confirm always approves.
func (AutoApprove) Confirm(ctx context.Context, title, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Alert logs the message.
func (a AutoApprove) Alert(title, text string) error {
	log := a.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("title", title).Warn(text)
	return nil
}
