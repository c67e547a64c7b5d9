package store

import (
	"github.com/ValentinKolb/recstore/lib/model"
)

var _ model.Collection = (*Store)(nil)
var _ model.Owner = (*Store)(nil)
var _ model.Expirer = (*Store)(nil)

// Append adds records created from data (see Add)
func (s *Store) Append(data ...map[string]interface{}) error {
	_, err := s.Add(data...)
	return err
}

// Spawn creates an empty store with the same configuration
func (s *Store) Spawn() model.Collection {
	c, err := New(s.cfg)
	if err != nil {
		// the config is validated already
		plog.Panicf("%s: cannot spawn store: %v", s.cfg.Name, err)
	}
	c.parent.Store(s.parent.Load())
	return c
}

// CloneCollection returns Clone as a model.Collection
func (s *Store) CloneCollection() model.Collection {
	return s.Clone()
}
