package store

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/codec"
	"github.com/ValentinKolb/recstore/lib/model"
	"time"
)

// Snapshot is a serialized copy of the active view at one point in time.
// It does not observe the store.
type Snapshot struct {
	Time  time.Time
	Size  int    // Number of records
	Codec string // Name of the codec used
	Bytes []byte
}

// Dataset decodes the snapshot
func (s Snapshot) Dataset() (codec.Dataset, error) {
	c, err := codec.ByName(s.Codec)
	if err != nil {
		return nil, err
	}
	return c.Decode(s.Bytes)
}

// Snapshot serializes the active view (hidden fields included) with the configured codec
// and keeps it. With MaxSnapshots the oldest snapshots are dropped.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.activeView()
	ds := make(codec.Dataset, len(view))
	for i, e := range view {
		ds[i] = e.rec.ToData(model.DataOptions{Hidden: true})
	}
	b, err := s.cfg.Codec.Encode(ds)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: snapshot failed: %w", s.cfg.Name, err)
	}
	snap := Snapshot{Time: time.Now(), Size: len(ds), Codec: s.cfg.Codec.Name(), Bytes: b}
	s.snaps = append(s.snaps, snap)
	if max := s.cfg.MaxSnapshots; max > 0 && len(s.snaps) > max {
		s.snaps = append([]Snapshot(nil), s.snaps[len(s.snaps)-max:]...)
	}
	s.metrics.snapshots.Inc()
	return snap, nil
}

// Snapshots returns the kept snapshots, oldest first
func (s *Store) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snaps...)
}

// Data serializes the active view
func (s *Store) Data(opts model.DataOptions) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.activeView()
	out := make([]map[string]interface{}, len(view))
	for i, e := range view {
		out[i] = e.rec.ToData(opts)
	}
	return out
}
