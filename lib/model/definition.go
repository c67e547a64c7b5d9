package model

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/field"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

// Definition is the file representation of a schema
type Definition struct {
	Name    string            `yaml:"name"`
	IDField string            `yaml:"id,omitempty"`
	AutoID  bool              `yaml:"autoid,omitempty"`
	Strict  bool              `yaml:"strict,omitempty"`
	Remap   map[string]string `yaml:"remap,omitempty"`
	LogSize int               `yaml:"log,omitempty"`
	TTL     time.Duration     `yaml:"ttl,omitempty"`
	Fields  []FieldDefinition `yaml:"fields"`
}

// FieldDefinition is the file representation of a field.
// Model and Collection declare relationship fields with an inline nested schema.
type FieldDefinition struct {
	Name         string        `yaml:"name"`
	Type         string        `yaml:"type,omitempty"`
	Default      interface{}   `yaml:"default,omitempty"`
	Required     bool          `yaml:"required,omitempty"`
	Hidden       bool          `yaml:"hidden,omitempty"`
	ID           bool          `yaml:"id,omitempty"`
	Pattern      string        `yaml:"pattern,omitempty"`
	Min          *float64      `yaml:"min,omitempty"`
	Max          *float64      `yaml:"max,omitempty"`
	Enum         []interface{} `yaml:"enum,omitempty"`
	Reject       []interface{} `yaml:"reject,omitempty"`
	AllowInvalid bool          `yaml:"allow_invalid,omitempty"`
	LogSize      int           `yaml:"log,omitempty"`
	Model        *Definition   `yaml:"model,omitempty"`
	Collection   *Definition   `yaml:"collection,omitempty"`
}

// ParseDefinition decodes a schema definition. Unknown keys are rejected.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, common.Wrap(common.ErrCConfiguration, "", "failed to parse schema definition", err)
	}
	return &def, nil
}

// LoadDefinition reads and decodes a schema definition file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema definition: %w", err)
	}
	return ParseDefinition(data)
}

// Schema builds the schema described by the definition. The observer (may be nil) is
// installed on the schema and every nested schema.
func (d *Definition) Schema(o event.Observer) (*Schema, error) {
	cfg := SchemaConfig{
		Name:     d.Name,
		IDField:  d.IDField,
		AutoID:   d.AutoID,
		Strict:   d.Strict,
		Remap:    d.Remap,
		LogSize:  d.LogSize,
		TTL:      d.TTL,
		Observer: o,
	}
	for _, fd := range d.Fields {
		fc, err := fd.config(o)
		if err != nil {
			return nil, err
		}
		cfg.Fields = append(cfg.Fields, fc)
	}
	return NewSchema(cfg)
}

func (fd FieldDefinition) config(o event.Observer) (field.Config, error) {
	t, err := field.ParseType(fd.Type)
	if err != nil {
		return field.Config{}, common.Wrap(common.ErrCConfiguration, fd.Name, "invalid field definition", err)
	}
	fc := field.Config{
		Name:         fd.Name,
		Type:         t,
		Default:      fd.Default,
		Required:     fd.Required,
		Hidden:       fd.Hidden,
		ID:           fd.ID,
		Pattern:      fd.Pattern,
		Min:          fd.Min,
		Max:          fd.Max,
		Enum:         fd.Enum,
		Reject:       fd.Reject,
		AllowInvalid: fd.AllowInvalid,
		LogSize:      fd.LogSize,
	}

	if fd.Model != nil && fd.Collection != nil {
		return fc, common.Errorf(common.ErrCConfiguration, fd.Name, "a field is either a model or a collection")
	}
	switch {
	case fd.Model != nil:
		nested, err := fd.Model.Schema(o)
		if err != nil {
			return fc, err
		}
		fc.Default = nested
	case fd.Collection != nil:
		nested, err := fd.Collection.Schema(o)
		if err != nil {
			return fc, err
		}
		fc.Default = []interface{}{nested}
	}
	return fc, nil
}
