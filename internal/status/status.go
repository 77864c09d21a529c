// Package status holds the controller's user-facing status as an observable
// value.
package status

import (
	"sync"
	"time"
)

// Status is a snapshot of what the controller is currently showing.
type Status struct {
	Mode    string
	Text    string
	Updated time.Time
}

// Value is a goroutine-safe Status with change subscribers.
type Value struct {
	mu     sync.Mutex
	cur    Status
	nextID int
	subs   map[int]func(Status)
}

// NewValue returns an empty Value.
func NewValue() *Value {
	return &Value{subs: make(map[int]func(Status))}
}

// Get returns the current status.
func (v *Value) Get() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set stores s and notifies subscribers. Subscribers run on the caller's
// goroutine, outside the lock.
func (v *Value) Set(s Status) {
	if s.Updated.IsZero() {
		s.Updated = time.Now()
	}
	v.mu.Lock()
	v.cur = s
	fns := make([]func(Status), 0, len(v.subs))
	for _, fn := range v.subs {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Subscribe registers fn for future changes and returns a function that
// removes it.
func (v *Value) Subscribe(fn func(Status)) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.subs == nil {
		v.subs = make(map[int]func(Status))
	}
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}
