package store

import (
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/model"
)

// activeView returns the cached active view in backing order. s.mu must be held.
func (s *Store) activeView() []*entry {
	if s.view != nil {
		return s.view
	}
	view := make([]*entry, 0, s.active)
	for _, e := range s.list {
		if e.active {
			e.vpos = len(view)
			view = append(view, e)
		}
	}
	s.view = view
	return view
}

// Move repositions a record (a record, an identifier or a Pos) to backing position to.
// Positions beyond the end move the record to the end. It emits record.moved.
func (s *Store) Move(ref interface{}, to int) bool {
	s.mu.Lock()
	defer s.unlock()

	e := s.resolve(ref)
	if e == nil {
		plog.Warningf("%s: cannot move %v: no such record", s.cfg.Name, ref)
		return false
	}
	if to < 0 {
		to = 0
	}
	if to >= len(s.list) {
		to = len(s.list) - 1
	}
	from := e.pos
	if from == to {
		return true
	}
	if from < to {
		copy(s.list[from:to], s.list[from+1:to+1])
		s.list[to] = e
		s.renumber(from)
	} else {
		copy(s.list[to+1:from+1], s.list[to:from])
		s.list[to] = e
		s.renumber(to)
	}
	s.emit(event.RecordMoved, e.rec, event.MoveDelta{From: from, To: to})
	return true
}

// MoveToStart moves a record to the first backing position
func (s *Store) MoveToStart(ref interface{}) bool {
	return s.Move(ref, 0)
}

// MoveToEnd moves a record to the last backing position
func (s *Store) MoveToEnd(ref interface{}) bool {
	return s.Move(ref, int(^uint(0)>>1))
}

// At returns the record at position i of the active view (nil if out of range)
func (s *Store) At(i int) *model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.resolve(Pos(i)); e != nil {
		return e.rec
	}
	return nil
}

// First returns the first record of the active view
func (s *Store) First() *model.Record { return s.At(0) }

// Last returns the last record of the active view
func (s *Store) Last() *model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.activeView()
	if len(view) == 0 {
		return nil
	}
	return view[len(view)-1].rec
}

// Position returns the position of r in the active view (-1 if r is not active)
func (s *Store) Position(r *model.Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byRec[r]
	if e == nil || !e.active {
		return -1
	}
	s.activeView()
	return e.vpos
}

// Records returns the active view
func (s *Store) Records() []*model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.activeView()
	recs := make([]*model.Record, len(view))
	for i, e := range view {
		recs[i] = e.rec
	}
	return recs
}

// All returns the backing list, soft-deleted and filtered records included
func (s *Store) All() []*model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]*model.Record, len(s.list))
	for i, e := range s.list {
		recs[i] = e.rec
	}
	return recs
}
