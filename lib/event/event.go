package event

import (
	"fmt"
	"sync"
)

// --------------------------------------------------------------------------
// Event Types
// --------------------------------------------------------------------------

type Type string

const (
	FieldCreate  Type = "field.create"
	FieldUpdate  Type = "field.update"
	FieldRemove  Type = "field.remove"
	FieldInvalid Type = "field.invalid"
	FieldValid   Type = "field.valid"
	FieldHide    Type = "field.hide"
	FieldUnhide  Type = "field.unhide"

	RecordCreate   Type = "record.create"
	RecordDelete   Type = "record.delete"
	RecordRestored Type = "record.restored"
	RecordMoved    Type = "record.moved"
	RecordExpired  Type = "record.expired"

	StoreClear    Type = "clear"
	StoreLoaded   Type = "loaded"
	StoreReloaded Type = "reloaded"
	StoreCompact  Type = "compact"

	IndexReset  Type = "reset"
	IndexUpdate Type = "index.update"
)

// FieldDelta is the payload of field update and validity events
type FieldDelta struct {
	Field string
	Old   interface{}
	New   interface{}
	Err   error // rule failures (only for field.invalid)
}

// MoveDelta is the payload of record.moved, positions refer to the backing list
type MoveDelta struct {
	From int
	To   int
}

// Event is a single change notification.
type Event struct {
	Type   Type        // What happened
	Source string      // Name of the emitting field, schema, index or store
	Target interface{} // The field, record or index the event refers to (may be nil)
	Delta  interface{} // FieldDelta, MoveDelta or nil
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Source: %s}", e.Type, e.Source)
}

// --------------------------------------------------------------------------
// Observer
// --------------------------------------------------------------------------

// Observer receives events. Notify is called synchronously by the emitter.
type Observer interface {
	Notify(ev Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(ev Event)

func (f ObserverFunc) Notify(ev Event) { f(ev) }

// Notify delivers ev to o if o is not nil
func Notify(o Observer, ev Event) {
	if o != nil {
		o.Notify(ev)
	}
}

// --------------------------------------------------------------------------
// Bus (fan-out observer)
// --------------------------------------------------------------------------

type subscription struct {
	types map[Type]struct{} // empty = all types
	fn    func(Event)
}

// Bus fans events out to its subscribers in subscription order.
//
// Thread-safety: Subscribe, the returned cancel function and Notify can be called concurrently.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	ids  []uint64
	subs map[uint64]subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]subscription)}
}

// Subscribe registers fn for the given event types (all types if none are given).
// The returned function removes the subscription.
func (b *Bus) Subscribe(fn func(Event), types ...Type) (cancel func()) {
	sub := subscription{fn: fn, types: make(map[Type]struct{}, len(types))}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	b.mu.Lock()
	b.next++
	id := b.next
	b.ids = append(b.ids, id)
	b.subs[id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; !ok {
			return
		}
		delete(b.subs, id)
		for i, other := range b.ids {
			if other == id {
				b.ids = append(b.ids[:i], b.ids[i+1:]...)
				break
			}
		}
	}
}

// Notify delivers ev to all matching subscribers.
// The subscriber list is copied first so subscribers may (un)subscribe while being notified.
func (b *Bus) Notify(ev Event) {
	b.mu.RLock()
	targets := make([]func(Event), 0, len(b.ids))
	for _, id := range b.ids {
		sub := b.subs[id]
		if len(sub.types) > 0 {
			if _, ok := sub.types[ev.Type]; !ok {
				continue
			}
		}
		targets = append(targets, sub.fn)
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// --------------------------------------------------------------------------
// Recorder
// --------------------------------------------------------------------------

// Recorder stores every event it is notified of.
//
// Thread-safety: all methods can be called concurrently.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of all recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the types of all recorded events in order
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// Count returns how many events of type t were recorded
func (r *Recorder) Count(t Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// Reset drops all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
