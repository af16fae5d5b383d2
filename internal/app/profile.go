package app

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// profiler appends per-section frame timings as CSV. A nil profiler is a no-op.
type profiler struct {
	mu    sync.Mutex
	out   io.WriteCloser
	start time.Time
	last  time.Time
	now   func() time.Time
}

func newProfiler(path string, log *logrus.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Warn("profiler disabled")
		return nil
	}
	log.WithField("path", path).Info("frame profiling enabled")
	return newProfilerTo(f, time.Now)
}

func newProfilerTo(out io.WriteCloser, now func() time.Time) *profiler {
	p := &profiler{out: out, now: now}
	fmt.Fprintln(p.out, "timestamp,state,section,delta_ms")
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	now := p.now()
	p.start = now
	p.last = now
}

// markSection records the time since the previous mark.
func (p *profiler) markSection(state State, name string) {
	if p == nil {
		return
	}
	now := p.now()
	delta := now.Sub(p.last)
	p.last = now
	p.log(now, state, name, delta)
}

func (p *profiler) endFrame(state State) {
	if p == nil {
		return
	}
	now := p.now()
	p.log(now, state, "frame_total", now.Sub(p.start))
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Close()
}

func (p *profiler) log(at time.Time, state State, section string, delta time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s,%s,%s,%.3f\n", at.Format(time.RFC3339Nano), state, section, delta.Seconds()*1000)
}
