package store

import (
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/expr"
	"github.com/ValentinKolb/recstore/lib/model"
)

// Predicate decides whether a record is part of the active view
type Predicate func(r *model.Record) bool

type filter struct {
	name    string
	pred    Predicate
	src     string // source of expression filters
	enabled bool
}

// passes reports whether r satisfies every enabled filter. s.mu must be held.
func (s *Store) passes(r *model.Record) bool {
	for _, f := range s.filters {
		if f.enabled && !f.pred(r) {
			return false
		}
	}
	return true
}

func (s *Store) lookupFilter(name string) (int, *filter) {
	for i, f := range s.filters {
		if f.name == name {
			return i, f
		}
	}
	return -1, nil
}

// AddFilter adds an enabled filter. Only records of the active view are re-evaluated.
func (s *Store) AddFilter(name string, pred Predicate) error {
	return s.addFilter(&filter{name: name, pred: pred, enabled: true})
}

// AddFilterExpr adds a filter from a CEL expression over the serialized record, e.g.
// `record.last_name == "Doe"`.
func (s *Store) AddFilterExpr(name, src string) error {
	x, err := expr.Compile(src)
	if err != nil {
		return err
	}
	return s.addFilter(&filter{name: name, pred: x.Match, src: src, enabled: true})
}

func (s *Store) addFilter(f *filter) error {
	if f.name == "" || f.pred == nil {
		return common.NewError(common.ErrCConfiguration, "a filter requires a name and a predicate")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.lookupFilter(f.name); dup != nil {
		return common.Errorf(common.ErrCConfiguration, "", "filter %s already exists", f.name)
	}
	s.filters = append(s.filters, f)
	s.narrow(f)
	plog.Debugf("%s: added filter %s, %d records active", s.cfg.Name, f.name, s.active)
	return nil
}

// RemoveFilter removes a filter. Only records currently excluded are re-evaluated.
func (s *Store) RemoveFilter(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, f := s.lookupFilter(name)
	if f == nil {
		plog.Warningf("%s: no filter %s", s.cfg.Name, name)
		return false
	}
	s.filters = append(s.filters[:i], s.filters[i+1:]...)
	if f.enabled {
		s.widen()
	}
	return true
}

// EnableFilter re-enables a disabled filter
func (s *Store) EnableFilter(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, f := s.lookupFilter(name)
	if f == nil {
		plog.Warningf("%s: no filter %s", s.cfg.Name, name)
		return false
	}
	if !f.enabled {
		f.enabled = true
		s.narrow(f)
	}
	return true
}

// DisableFilter keeps a filter but stops applying it
func (s *Store) DisableFilter(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, f := s.lookupFilter(name)
	if f == nil {
		plog.Warningf("%s: no filter %s", s.cfg.Name, name)
		return false
	}
	if f.enabled {
		f.enabled = false
		s.widen()
	}
	return true
}

// Filter re-evaluates every enabled filter against all records that are not deleted.
// It is needed after changes the store cannot observe, e.g. predicates over external state.
func (s *Store) Filter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = 0
	for _, e := range s.list {
		e.active = !e.deleted && s.passes(e.rec)
		if e.active {
			s.active++
		}
	}
	s.view = nil
}

// Filters returns the names of all filters, enabled or not
func (s *Store) Filters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.filters))
	for i, f := range s.filters {
		names[i] = f.name
	}
	return names
}

// narrow applies f to the active view. s.mu must be held.
func (s *Store) narrow(f *filter) {
	for _, e := range s.list {
		if e.active && !f.pred(e.rec) {
			e.active = false
			s.active--
		}
	}
	s.view = nil
}

// widen re-evaluates the records excluded by filters. s.mu must be held.
func (s *Store) widen() {
	for _, e := range s.list {
		if !e.active && !e.deleted && s.passes(e.rec) {
			e.active = true
			s.active++
		}
	}
	s.view = nil
}
