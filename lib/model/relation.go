package model

import "github.com/ValentinKolb/recstore/lib/field"

// --------------------------------------------------------------------------
// Relationships
// --------------------------------------------------------------------------

// Manner is the cardinality of a relationship field
type Manner int

const (
	MannerModel      Manner = iota + 1 // a single nested record
	MannerStore                        // a nested collection spawned from a template
	MannerCollection                   // a nested collection created from a schema
)

func (m Manner) String() string {
	switch m {
	case MannerModel:
		return "model"
	case MannerStore:
		return "store"
	case MannerCollection:
		return "collection"
	default:
		return "none"
	}
}

// Collection is an ordered set of records of one schema. It is implemented by store.Store
// and used for nested relationship fields.
type Collection interface {
	Schema() *Schema
	Size() int
	Records() []*Record
	Append(data ...map[string]interface{}) error
	Data(opts DataOptions) []map[string]interface{}
	// Spawn creates an empty collection with the same configuration
	Spawn() Collection
	// CloneCollection creates an independent copy including all records
	CloneCollection() Collection
}

// CollectionFactory creates an empty collection for a schema
type CollectionFactory func(s *Schema) (Collection, error)

// Relation describes a relationship field
type Relation struct {
	Field    string
	Manner   Manner
	Schema   *Schema    // schema of the nested records
	template Collection // store manner only
}

// relationOf detects a relationship from the default value of a field config
func relationOf(cfg field.Config) (*Relation, bool) {
	switch d := cfg.Default.(type) {
	case *Schema:
		if d != nil {
			return &Relation{Field: cfg.Name, Manner: MannerModel, Schema: d}, true
		}
	case Collection:
		if d != nil {
			return &Relation{Field: cfg.Name, Manner: MannerStore, Schema: d.Schema(), template: d}, true
		}
	case []interface{}:
		if len(d) == 1 {
			if s, ok := d[0].(*Schema); ok && s != nil {
				return &Relation{Field: cfg.Name, Manner: MannerCollection, Schema: s}, true
			}
		}
	}
	return nil, false
}
