package scheduler

import (
	"sort"
	"time"
)

var _ Scheduler = &Manual{}

// Manual is a virtual-time Scheduler. Callbacks only run from Advance, on the
// calling goroutine, in due-time order. It is not safe for concurrent use.
type Manual struct {
	now     time.Time
	seq     uint64
	pending []*manualTimer
}

// NewManual creates a manual scheduler starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

type manualTimer struct {
	due       time.Time
	seq       uint64
	period    time.Duration
	fn        func()
	cancelled bool
}

func (t *manualTimer) Cancel() {
	t.cancelled = true
}

func (t *manualTimer) Cancelled() bool {
	return t.cancelled
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// After schedules fn to run once d after the current virtual time.
func (m *Manual) After(d time.Duration, fn func()) Handle {
	return m.schedule(d, 0, fn)
}

// Every schedules fn to run every d.
func (m *Manual) Every(d time.Duration, fn func()) Handle {
	d = clampPeriod(d)
	return m.schedule(d, d, fn)
}

func (m *Manual) schedule(d, period time.Duration, fn func()) *manualTimer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{
		due:    m.now.Add(d),
		seq:    m.seq,
		period: period,
		fn:     fn,
	}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves virtual time forward by d, running every callback that
// becomes due, including callbacks scheduled by callbacks.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		next := m.popDue(target)
		if next == nil {
			break
		}
		m.now = next.due
		if next.period > 0 {
			m.seq++
			next.due = next.due.Add(next.period)
			next.seq = m.seq
			m.pending = append(m.pending, next)
		}
		next.fn()
	}
	m.now = target
}

// Pending returns the number of callbacks that have not run or been cancelled.
func (m *Manual) Pending() int {
	count := 0
	for _, t := range m.pending {
		if !t.cancelled {
			count++
		}
	}
	return count
}

func (m *Manual) popDue(target time.Time) *manualTimer {
	live := m.pending[:0]
	for _, t := range m.pending {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.pending = live

	if len(m.pending) == 0 {
		return nil
	}

	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due.Equal(m.pending[j].due) {
			return m.pending[i].seq < m.pending[j].seq
		}
		return m.pending[i].due.Before(m.pending[j].due)
	})

	next := m.pending[0]
	if next.due.After(target) {
		return nil
	}
	m.pending = m.pending[1:]
	return next
}
