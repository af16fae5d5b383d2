package app

import (
	"sync"
	"time"
)

// FrameID identifies a pending frame request. Zero is never issued.
type FrameID uint64

type frameRequest struct {
	id FrameID
	cb func(now time.Time)
}

// Scheduler is a display-refresh style frame registry. Callbacks requested
// during a Step run on the following Step, so a callback that re-requests
// itself runs once per frame. Frame methods must be called from the loop
// goroutine; Post is safe from any goroutine.
type Scheduler struct {
	next    FrameID
	queue   []frameRequest
	running []frameRequest

	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

// RequestFrame registers cb for the next Step and returns its token.
func (s *Scheduler) RequestFrame(cb func(now time.Time)) FrameID {
	s.next++
	s.queue = append(s.queue, frameRequest{id: s.next, cb: cb})
	return s.next
}

// CancelFrame drops a pending request. Unknown or already run ids are ignored.
func (s *Scheduler) CancelFrame(id FrameID) {
	for _, list := range [][]frameRequest{s.queue, s.running} {
		for i := range list {
			if list[i].id == id {
				list[i].cb = nil
			}
		}
	}
	s.compact()
}

// Pending returns the ids waiting for the next Step.
func (s *Scheduler) Pending() []FrameID {
	var ids []FrameID
	for _, r := range s.queue {
		if r.cb != nil {
			ids = append(ids, r.id)
		}
	}
	return ids
}

// Step runs every callback requested before the call and returns how many ran.
func (s *Scheduler) Step(now time.Time) int {
	s.running, s.queue = s.queue, nil
	ran := 0
	for i := range s.running {
		cb := s.running[i].cb
		if cb == nil {
			continue
		}
		s.running[i].cb = nil
		cb(now)
		ran++
	}
	s.running = nil
	return ran
}

// Post queues task to run on the loop goroutine at the next RunTasks.
func (s *Scheduler) Post(task func()) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wake is signalled whenever a task is posted.
func (s *Scheduler) Wake() <-chan struct{} {
	return s.wake
}

// RunTasks runs the posted tasks in order, including ones posted while draining.
func (s *Scheduler) RunTasks() int {
	ran := 0
	for {
		s.mu.Lock()
		tasks := s.tasks
		s.tasks = nil
		s.mu.Unlock()
		if len(tasks) == 0 {
			return ran
		}
		for _, task := range tasks {
			task()
			ran++
		}
	}
}

func (s *Scheduler) compact() {
	kept := s.queue[:0]
	for _, r := range s.queue {
		if r.cb != nil {
			kept = append(kept, r)
		}
	}
	s.queue = kept
}
