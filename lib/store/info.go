package store

import (
	"github.com/ValentinKolb/recstore/lib/index"
)

// Info describes the state of a store
type Info struct {
	Name       string
	Schema     string
	SoftDelete bool
	Size       int // records in the active view
	Length     int // records in the backing list
	Deleted    int // soft-deleted records
	Filters    []string
	Indexes    []index.Info
	Snapshots  int
	Expiring   int // records with a pending expiration
}

// Info returns the current state of the store
func (s *Store) Info() Info {
	indexes := s.Indexes()
	filters := s.Filters()

	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		Name:       s.cfg.Name,
		Schema:     s.schema.Name(),
		SoftDelete: s.cfg.SoftDelete,
		Size:       s.active,
		Length:     len(s.list),
		Filters:    filters,
		Indexes:    indexes,
		Snapshots:  len(s.snaps),
	}
	sched := s.running()
	for _, e := range s.list {
		if e.deleted {
			info.Deleted++
		}
		if sched != nil && sched.Pending(e.key) {
			info.Expiring++
		}
	}
	return info
}
