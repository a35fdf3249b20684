// Package records keeps extremal scores in a key/value store.
package records

import (
	"context"

	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/store"
)

// Direction decides which of two scores is better.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

// Better reports whether candidate strictly improves on current.
func (d Direction) Better(candidate, current int) bool {
	if d == LowerIsBetter {
		return candidate < current
	}
	return candidate > current
}

// Record is a single persisted value. Store failures are logged and treated
// as "no record", never surfaced to the game.
type Record struct {
	store     store.Store
	key       string
	direction Direction
}

func New(s store.Store, key string, direction Direction) *Record {
	return &Record{
		store:     s,
		key:       key,
		direction: direction,
	}
}

// Key returns the store key of the record.
func (r *Record) Key() string {
	return r.key
}

// Load returns the stored value. ok is false when none is stored or the stored
// value is malformed.
func (r *Record) Load(ctx context.Context) (value int, ok bool) {
	value, ok, err := store.GetInt(ctx, r.store, r.key)
	if err != nil {
		log.Error("Failed to load record %s: %v", r.key, err)
		return 0, false
	}
	return value, ok
}

// Submit stores value if it strictly improves on the stored record, or if no
// record exists. It returns whether the record was improved.
func (r *Record) Submit(ctx context.Context, value int) bool {
	current, ok := r.Load(ctx)
	if ok && !r.direction.Better(value, current) {
		return false
	}
	if err := store.SetInt(ctx, r.store, r.key, value); err != nil {
		log.Error("Failed to save record %s: %v", r.key, err)
		return false
	}
	return true
}

// Put stores value unconditionally.
func (r *Record) Put(ctx context.Context, value int) {
	if err := store.SetInt(ctx, r.store, r.key, value); err != nil {
		log.Error("Failed to save record %s: %v", r.key, err)
	}
}

// Clear removes the stored value.
func (r *Record) Clear(ctx context.Context) {
	if err := r.store.Delete(ctx, r.key); err != nil {
		log.Error("Failed to clear record %s: %v", r.key, err)
	}
}
