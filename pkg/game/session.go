package game

import (
	"github.com/cbodonnell/arcade/pkg/game/constants"
	"github.com/cbodonnell/arcade/pkg/scheduler"
)

// Session is one timed play-through.
type Session struct {
	Active    bool
	Remaining int
	Counters  map[string]int
}

// NewSession creates an inactive session with the named counters at zero.
func NewSession(duration int, counters ...string) *Session {
	s := &Session{
		Counters: make(map[string]int, len(counters)),
	}
	for _, name := range counters {
		s.Counters[name] = 0
	}
	s.Reset(duration)
	return s
}

// Reset deactivates the session, restores the countdown and zeroes every counter.
func (s *Session) Reset(duration int) {
	s.Active = false
	s.Remaining = duration
	for name := range s.Counters {
		s.Counters[name] = 0
	}
}

// Inc increments a counter and returns its new value.
func (s *Session) Inc(name string) int {
	s.Counters[name]++
	return s.Counters[name]
}

// Counter returns the value of a counter.
func (s *Session) Counter(name string) int {
	return s.Counters[name]
}

// Countdown drives a session's remaining time with a single recurring tick.
type Countdown struct {
	group  *scheduler.Group
	handle scheduler.Handle
}

func NewCountdown(group *scheduler.Group) *Countdown {
	return &Countdown{group: group}
}

// Start cancels any running tick and starts a new one. Every tick decrements
// s.Remaining and calls onTick. When the remaining time reaches zero the tick
// is stopped before onExpire is called.
func (c *Countdown) Start(s *Session, onTick func(), onExpire func()) {
	c.Stop()
	c.handle = c.group.Every(constants.TickInterval, func() {
		s.Remaining--
		if onTick != nil {
			onTick()
		}
		if s.Remaining <= 0 {
			c.Stop()
			onExpire()
		}
	})
}

// Stop cancels the running tick, if any.
func (c *Countdown) Stop() {
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
}

// Running reports whether a tick is scheduled.
func (c *Countdown) Running() bool {
	return c.handle != nil
}
