package store

import (
	"github.com/ValentinKolb/recstore/lib/model"
)

// Changes lists the records created, updated and deleted since the last commit.
// Persistence adapters write them and call CommitChanges.
type Changes struct {
	Create []*model.Record
	Update []*model.Record
	Delete []*model.Record
}

// Empty reports whether there are no pending changes
func (c Changes) Empty() bool {
	return len(c.Create) == 0 && len(c.Update) == 0 && len(c.Delete) == 0
}

// changelog keeps the pending changes in first-change order
type changelog struct {
	create, update, delete *orderedSet
}

func newChangelog() *changelog {
	c := &changelog{}
	c.reset()
	return c
}

func (c *changelog) reset() {
	c.create = newOrderedSet()
	c.update = newOrderedSet()
	c.delete = newOrderedSet()
}

func (c *changelog) created(r *model.Record) {
	c.create.add(r)
}

func (c *changelog) updated(r *model.Record) {
	// new records are written with their latest state anyway
	if !c.create.has(r) {
		c.update.add(r)
	}
}

func (c *changelog) deleted(r *model.Record) {
	c.update.remove(r)
	if c.create.remove(r) {
		// never persisted
		return
	}
	c.delete.add(r)
}

// restored cancels a pending delete. Otherwise the record is either not persisted or
// its deletion has been committed, both make it a new record.
func (c *changelog) restored(r *model.Record) {
	if c.delete.remove(r) {
		return
	}
	c.create.add(r)
}

func (c *changelog) snapshot() Changes {
	return Changes{Create: c.create.list(), Update: c.update.list(), Delete: c.delete.list()}
}

func (c *changelog) commit() Changes {
	ch := c.snapshot()
	c.reset()
	return ch
}

// Changes returns a copy of the pending changes
func (s *Store) Changes() Changes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changes.snapshot()
}

// CommitChanges returns the pending changes and resets them
func (s *Store) CommitChanges() Changes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changes.commit()
}

// orderedSet is a set of records that keeps the insertion order
type orderedSet struct {
	pos   map[*model.Record]int
	items []*model.Record
}

func newOrderedSet() *orderedSet {
	return &orderedSet{pos: make(map[*model.Record]int)}
}

func (o *orderedSet) has(r *model.Record) bool {
	_, ok := o.pos[r]
	return ok
}

func (o *orderedSet) add(r *model.Record) {
	if _, ok := o.pos[r]; ok {
		return
	}
	o.pos[r] = len(o.items)
	o.items = append(o.items, r)
}

func (o *orderedSet) remove(r *model.Record) bool {
	p, ok := o.pos[r]
	if !ok {
		return false
	}
	delete(o.pos, r)
	o.items[p] = nil
	return true
}

func (o *orderedSet) list() []*model.Record {
	out := make([]*model.Record, 0, len(o.pos))
	for _, r := range o.items {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
