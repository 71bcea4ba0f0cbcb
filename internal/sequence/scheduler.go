package sequence

import (
	"sync"
	"time"
)

// DefaultFPS approximates a display refresh rate.
const DefaultFPS = 60

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FrameScheduler runs each requested callback once, one refresh interval
// after the request. When mu is set the callback runs with mu held.
type FrameScheduler struct {
	interval time.Duration
	mu       sync.Locker
}

// NewFrameScheduler paces callbacks at fps, DefaultFPS when fps <= 0. mu
// may be nil.
func NewFrameScheduler(fps int, mu sync.Locker) *FrameScheduler {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &FrameScheduler{interval: time.Second / time.Duration(fps), mu: mu}
}

// Interval is the delay between a request and its callback.
func (s *FrameScheduler) Interval() time.Duration { return s.interval }

// RequestFrame schedules fn once. The returned cancel is idempotent; a
// callback already waiting on mu still runs and must check its own
// generation.
func (s *FrameScheduler) RequestFrame(fn func()) func() {
	t := time.AfterFunc(s.interval, func() {
		if s.mu != nil {
			s.mu.Lock()
			defer s.mu.Unlock()
		}
		fn()
	})
	return func() { t.Stop() }
}

// Session serialises access to a Controller between UI commands and the
// refresh ticks, which share one mutex.
type Session struct {
	mu sync.Mutex
	c  *Controller
}

// NewSession builds a Controller whose ticks run under the session lock.
func NewSession(scene Scene, h Hooks, fps int, opts ...Option) *Session {
	s := &Session{}
	opts = append([]Option{WithScheduler(NewFrameScheduler(fps, &s.mu))}, opts...)
	s.c = NewController(scene, h, opts...)
	return s
}

// With runs f with exclusive access to the controller. f must not call
// With again.
func (s *Session) With(f func(c *Controller)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.c)
}

// Status is a locked shortcut for Controller.Status.
func (s *Session) Status() Status {
	var st Status
	s.With(func(c *Controller) { st = c.Status() })
	return st
}
