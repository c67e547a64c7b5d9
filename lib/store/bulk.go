package store

import (
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/model"
	"time"
)

// Load appends the records of a dataset. Either all records are loaded or none.
// No per-record events are emitted and the changelog is not touched,
// loaded is emitted exactly once with the number of records as delta.
func (s *Store) Load(data []map[string]interface{}) error {
	start := time.Now()
	recs, err := s.materialize(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlock()
	if err := s.admit(recs); err != nil {
		return err
	}
	s.bulkInsert(recs)
	s.emit(event.StoreLoaded, s, len(recs))
	s.metrics.observeLoad(start)
	plog.Infof("%s: loaded %d records in %s", s.cfg.Name, len(recs), time.Since(start))
	return nil
}

// Reload replaces all records by the records of a dataset. On error the store is unchanged.
// reloaded is emitted exactly once, the changelog and snapshots are reset.
func (s *Store) Reload(data []map[string]interface{}) error {
	start := time.Now()
	recs, err := s.materialize(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlock()

	// identifiers are checked against the new dataset only
	old := s.byID
	s.byID = make(map[interface{}]*entry)
	err = s.admit(recs)
	s.byID = old
	if err != nil {
		return err
	}
	s.releaseAll()
	s.bulkInsert(recs)
	s.emit(event.StoreReloaded, s, len(recs))
	s.metrics.observeLoad(start)
	plog.Infof("%s: reloaded %d records in %s", s.cfg.Name, len(recs), time.Since(start))
	return nil
}

// bulkInsert appends admitted records without events. s.mu must be held.
func (s *Store) bulkInsert(recs []*model.Record) {
	entries := make([]*entry, len(recs))
	for i, r := range recs {
		entries[i] = s.register(r)
	}
	s.place(-1, entries)
	for _, e := range entries {
		s.activate(e)
		s.armTTL(e.rec)
	}
	s.metrics.added.Add(len(entries))
}

// releaseAll drops every record, resets the indexes, the changelog and the snapshots.
// s.mu must be held.
func (s *Store) releaseAll() {
	for _, e := range s.list {
		s.release(e)
	}
	s.list = nil
	s.active = 0
	s.view = nil
	for _, idx := range s.indexes {
		idx.Reset()
	}
	s.changes.reset()
	s.snaps = nil
}

// Clear removes every record and emits clear. Indexes are kept (empty), filters are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.unlock()
	n := len(s.list)
	s.releaseAll()
	s.emit(event.StoreClear, s, n)
}

// Compact purges soft-deleted records from the backing list. Size is unchanged,
// Length converges to it. It emits compact with the number of purged records.
func (s *Store) Compact() int {
	s.mu.Lock()
	defer s.unlock()

	live := s.list[:0]
	var purged []*entry
	for _, e := range s.list {
		if e.deleted {
			purged = append(purged, e)
			continue
		}
		live = append(live, e)
	}
	for i := len(live); i < len(s.list); i++ {
		s.list[i] = nil
	}
	s.list = live
	s.renumber(0)
	for _, e := range purged {
		s.release(e)
	}
	s.metrics.compacted.Add(len(purged))
	s.emit(event.StoreCompact, s, len(purged))
	return len(purged)
}

// Clone returns an independent store with deep copies of all records (soft-deleted
// records included), the same filters and indexes. Observer, snapshots, changelog
// and expirations are not copied.
func (s *Store) Clone() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	cfg.Observer = nil
	cfg.Indexes = nil
	c, _ := New(cfg) // the config has been validated already
	c.parent.Store(s.parent.Load())
	c.filters = make([]*filter, len(s.filters))
	for i, f := range s.filters {
		cf := *f
		c.filters[i] = &cf
	}

	entries := make([]*entry, len(s.list))
	for i, e := range s.list {
		entries[i] = c.register(e.rec.Clone())
	}
	c.place(-1, entries)
	for i, e := range entries {
		if !s.list[i].deleted {
			c.activate(e)
		} else {
			e.deleted = true
		}
	}
	for name, idx := range s.indexes {
		_ = c.CreateIndex(name, idx.BTree())
	}
	return c
}
