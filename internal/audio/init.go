package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	initOnce sync.Once
	termOnce sync.Once
	initErr  error
	inited   bool
)

// Initialize wraps portaudio.Initialize with sync.Once so multiple callers are safe.
func Initialize() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
		inited = initErr == nil
	})
	return initErr
}

// Terminate balances a successful Initialize. It is a no-op otherwise.
func Terminate() {
	if !inited {
		return
	}
	termOnce.Do(func() {
		_ = portaudio.Terminate()
	})
}
