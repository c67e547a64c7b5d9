package store

import (
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/index"
	"github.com/ValentinKolb/recstore/lib/model"
	"github.com/ValentinKolb/recstore/lib/util"
	"sort"
)

// CreateIndex creates an index over a declared field from the records that are not
// deleted. With btree the index also answers range queries (ordered types only).
func (s *Store) CreateIndex(name string, btree bool) error {
	def, ok := s.schema.Field(name)
	if !ok {
		return common.Errorf(common.ErrCConfiguration, name, "cannot index unknown field %s", name)
	}
	if def.IsVirtual() {
		return common.Errorf(common.ErrCConfiguration, name, "cannot index virtual field %s", name)
	}

	s.mu.Lock()
	defer s.unlock()

	if _, exists := s.indexes[name]; exists {
		return common.Errorf(common.ErrCConfiguration, name, "index on %s already exists", name)
	}
	cfg := index.Config{Field: name, Type: def.Type(), BTree: btree}
	if s.cfg.IndexEvents {
		cfg.Observer = event.ObserverFunc(s.enqueue)
	}
	idx, err := index.New(cfg)
	if err != nil {
		return err
	}
	for _, e := range s.list {
		if !e.deleted {
			idx.Add(e.rec.Get(name), e.id)
		}
	}
	s.indexes[name] = idx
	plog.Debugf("%s: created index %s (%d values)", s.cfg.Name, idx, idx.Len())
	return nil
}

// RemoveIndex drops the indexes of the given fields (all indexes if none are given).
// Each dropped index emits reset.
func (s *Store) RemoveIndex(fields ...string) {
	s.mu.Lock()
	defer s.unlock()

	if len(fields) == 0 {
		for name := range s.indexes {
			fields = append(fields, name)
		}
		sort.Strings(fields)
	}
	for _, name := range fields {
		idx, ok := s.indexes[name]
		if !ok {
			plog.Warningf("%s: no index on %s", s.cfg.Name, name)
			continue
		}
		idx.Reset()
		delete(s.indexes, name)
	}
}

// Indexes returns the information of all indexes sorted by field name
func (s *Store) Indexes() []index.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]index.Info, 0, len(s.indexes))
	for _, idx := range s.indexes {
		infos = append(infos, idx.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Field < infos[j].Field })
	return infos
}

// GetIndexRecords returns the active records whose field equals value, in backing order.
// Without an index on the field the active view is scanned.
func (s *Store) GetIndexRecords(name string, value interface{}) []*model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok {
		plog.Debugf("%s: no index on %s, scanning", s.cfg.Name, name)
		var recs []*model.Record
		for _, e := range s.activeView() {
			if util.Equal(e.rec.Get(name), value) {
				recs = append(recs, e.rec)
			}
		}
		return recs
	}
	return s.activeOf(idx.Get(value))
}

// GetIndexRange returns the active records whose field is within [lo, hi] in key order.
// A nil bound is open. The field needs a B-tree index, otherwise nil is returned.
func (s *Store) GetIndexRange(name string, lo, hi interface{}) []*model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok || !idx.BTree() {
		plog.Warningf("%s: range queries need a btree index on %s", s.cfg.Name, name)
		return nil
	}
	var recs []*model.Record
	for _, id := range idx.Range(lo, hi) {
		if e := s.byID[util.HashKey(id)]; e != nil && e.active {
			recs = append(recs, e.rec)
		}
	}
	return recs
}

// activeOf maps identifiers to active records in backing order. s.mu must be held.
func (s *Store) activeOf(ids []interface{}) []*model.Record {
	entries := make([]*entry, 0, len(ids))
	for _, id := range ids {
		if e := s.byID[util.HashKey(id)]; e != nil && e.active {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })
	recs := make([]*model.Record, len(entries))
	for i, e := range entries {
		recs[i] = e.rec
	}
	return recs
}
