package scheduler

import (
	"sync"
	"time"
)

// Group tracks the outstanding callbacks of a single owner so that all of
// them can be cancelled together. One-shot callbacks leave the group once
// they have run.
type Group struct {
	scheduler Scheduler
	lock      sync.Mutex
	entries   map[*groupEntry]struct{}
}

// NewGroup creates an empty group on top of s.
func NewGroup(s Scheduler) *Group {
	return &Group{
		scheduler: s,
		entries:   make(map[*groupEntry]struct{}),
	}
}

type groupEntry struct {
	group  *Group
	handle Handle
}

func (e *groupEntry) Cancel() {
	e.group.remove(e)
	e.handle.Cancel()
}

func (e *groupEntry) Cancelled() bool {
	return e.handle.Cancelled()
}

// Now returns the underlying scheduler's time.
func (g *Group) Now() time.Time {
	return g.scheduler.Now()
}

// After schedules a tracked one-shot callback.
func (g *Group) After(d time.Duration, fn func()) Handle {
	e := &groupEntry{group: g}
	g.add(e)
	e.handle = g.scheduler.After(d, func() {
		g.remove(e)
		fn()
	})
	return e
}

// Every schedules a tracked recurring callback.
func (g *Group) Every(d time.Duration, fn func()) Handle {
	e := &groupEntry{group: g}
	g.add(e)
	e.handle = g.scheduler.Every(d, fn)
	return e
}

// CancelAll cancels every outstanding callback in the group.
func (g *Group) CancelAll() {
	g.lock.Lock()
	entries := g.entries
	g.entries = make(map[*groupEntry]struct{})
	g.lock.Unlock()

	for e := range entries {
		e.handle.Cancel()
	}
}

// Len returns the number of outstanding callbacks.
func (g *Group) Len() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return len(g.entries)
}

func (g *Group) add(e *groupEntry) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.entries[e] = struct{}{}
}

func (g *Group) remove(e *groupEntry) {
	g.lock.Lock()
	defer g.lock.Unlock()
	delete(g.entries, e)
}
