package model

import (
	"github.com/ValentinKolb/recstore/lib/event"
	"time"
)

// Expirer is implemented by owners that schedule record expirations themselves.
// Records of other owners (and standalone records) use their own timer.
type Expirer interface {
	Schedule(r *Record, deadline time.Time)
	Cancel(r *Record)
}

// ExpireAt sets the deadline of the record. A pending expiration is cancelled first, so
// a record expires at most once. Expired records cannot be rescheduled.
func (r *Record) ExpireAt(t time.Time) {
	if r.expired.Load() {
		plog.Warningf("%s has already expired", r)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(r.owner)
	// wall clock only, deadlines are compared with unix timestamps by schedulers
	r.deadline = t.Round(0)
	r.gen++
	r.scheduleLocked()
}

// ExpireIn sets the deadline of the record to now + d
func (r *Record) ExpireIn(d time.Duration) {
	r.ExpireAt(time.Now().Add(d))
}

// ClearExpiry cancels a pending expiration
func (r *Record) ClearExpiry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(r.owner)
	r.deadline = time.Time{}
	r.gen++
}

// Deadline returns the expiration deadline of the record
func (r *Record) Deadline() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline, !r.deadline.IsZero()
}

// Expired reports whether the record has reached its deadline
func (r *Record) Expired() bool {
	return r.expired.Load()
}

// CheckExpiry fires the expiration if the deadline has been reached.
// It returns true only for the call that actually expired the record.
func (r *Record) CheckExpiry() bool {
	r.mu.Lock()
	due := !r.deadline.IsZero() && !time.Now().Before(r.deadline)
	r.mu.Unlock()
	if !due {
		return false
	}
	return r.fire()
}

// scheduleLocked arms the expiration for the current deadline. r.mu must be held.
func (r *Record) scheduleLocked() {
	if exp, ok := r.owner.(Expirer); ok {
		exp.Schedule(r, r.deadline)
		return
	}
	gen := r.gen
	r.timer = time.AfterFunc(time.Until(r.deadline), func() {
		r.mu.Lock()
		current := gen == r.gen
		r.mu.Unlock()
		if current {
			r.fire()
		}
	})
}

// stopLocked cancels the timer or the owner's schedule entry. r.mu must be held.
func (r *Record) stopLocked(o Owner) {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if exp, ok := o.(Expirer); ok {
		exp.Cancel(r)
	}
}

func (r *Record) fire() bool {
	if !r.expired.CompareAndSwap(false, true) {
		return false
	}
	plog.Debugf("%s expired", r)
	if o := r.Owner(); o != nil {
		o.RecordExpired(r)
		return true
	}
	event.Notify(r.schema.cfg.Observer, event.Event{Type: event.RecordExpired, Source: r.schema.Name(), Target: r})
	return true
}
