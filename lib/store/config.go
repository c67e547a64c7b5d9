package store

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/recstore/lib/codec"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/expiry"
	"github.com/ValentinKolb/recstore/lib/model"
	"gopkg.in/yaml.v3"
	"os"
)

// IndexConfig declares an index created with the store
type IndexConfig struct {
	Field string `yaml:"field"`
	BTree bool   `yaml:"btree,omitempty"`
}

// Config is the configuration of a store
type Config struct {
	Name       string        // Name of the store (event source and metrics label)
	Schema     *model.Schema // Schema of the records (required)
	SoftDelete bool          // Keep removed records until Compact

	// Observer receives the events of the store and its records (may be nil).
	// Events are delivered in order, after the store lock has been released.
	Observer event.Observer
	// IndexEvents forwards index.update and reset events of the indexes to Observer
	IndexEvents bool

	Indexes []IndexConfig // Indexes created with the store

	Codec        codec.ICodec // Codec used for snapshots (default gob)
	MaxSnapshots int          // Number of snapshots kept (0 = unbounded)

	// Scheduler runs record expirations. If nil the store starts its own scheduler on
	// first use and stops it on Close.
	Scheduler *expiry.Scheduler
}

// withDefaults validates the config and fills in default values
func (c Config) withDefaults() (Config, error) {
	if c.Schema == nil {
		return c, common.NewError(common.ErrCConfiguration, "a store requires a schema")
	}
	if c.Name == "" {
		c.Name = c.Schema.Name()
	}
	if c.Codec == nil {
		c.Codec = codec.NewGOBCodec()
	}
	if c.MaxSnapshots < 0 {
		c.MaxSnapshots = 0
	}
	c.Indexes = append([]IndexConfig(nil), c.Indexes...)
	return c, nil
}

// --------------------------------------------------------------------------
// Definition files
// --------------------------------------------------------------------------

// FilterDefinition is a named filter expression
type FilterDefinition struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// Definition is the file representation of a store
type Definition struct {
	Name         string             `yaml:"name"`
	SoftDelete   bool               `yaml:"soft_delete,omitempty"`
	Codec        string             `yaml:"codec,omitempty"`
	MaxSnapshots int                `yaml:"max_snapshots,omitempty"`
	Schema       model.Definition   `yaml:"schema"`
	Indexes      []IndexConfig      `yaml:"indexes,omitempty"`
	Filters      []FilterDefinition `yaml:"filters,omitempty"`
}

// ParseDefinition decodes a store definition. Unknown keys are rejected.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, common.Wrap(common.ErrCConfiguration, "", "failed to parse store definition", err)
	}
	return &def, nil
}

// LoadDefinition reads and decodes a store definition file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store definition: %w", err)
	}
	return ParseDefinition(data)
}

// Build creates the store described by the definition
func (d *Definition) Build(o event.Observer) (*Store, error) {
	schema, err := d.Schema.Schema(o)
	if err != nil {
		return nil, err
	}
	cfg := Config{
		Name:         d.Name,
		Schema:       schema,
		SoftDelete:   d.SoftDelete,
		Observer:     o,
		Indexes:      d.Indexes,
		MaxSnapshots: d.MaxSnapshots,
	}
	if d.Codec != "" {
		if cfg.Codec, err = codec.ByName(d.Codec); err != nil {
			return nil, common.Wrap(common.ErrCConfiguration, "", "invalid store definition", err)
		}
	}
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	for _, f := range d.Filters {
		if err := s.AddFilterExpr(f.Name, f.Expr); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}
