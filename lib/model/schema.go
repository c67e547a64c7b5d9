package model

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/field"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"sync/atomic"
	"time"
)

var plog = logger.GetLogger("model")

// SchemaConfig is the configuration of a record type
type SchemaConfig struct {
	Name    string         // Name of the schema (used as event source)
	Fields  []field.Config // Fields in declaration order
	IDField string         // Name of the identifier field (default: a field flagged ID, then "id")
	AutoID  bool           // Generate a UUID when a record has no identifier value
	Strict  bool           // Reject unknown keys when materializing records

	// Remap maps external data keys to field names. It is applied to incoming data and
	// reversed for outgoing data.
	Remap map[string]string

	LogSize int           // Size of the per-record audit log (0 = disabled)
	TTL     time.Duration // Default expiration of records added to a store (0 = none)

	// Observer receives schema events and the events of records that do not belong to a store
	Observer event.Observer
}

// layout is an immutable snapshot of the fields of a schema
type layout struct {
	defs       []*field.Definition
	pos        map[string]int
	relations  map[string]*Relation
	dependents map[string][]int // field name -> positions of virtual fields depending on it
	id         int
}

func (l *layout) lookup(name string) (*field.Definition, int, bool) {
	i, ok := l.pos[name]
	if !ok {
		return nil, -1, false
	}
	return l.defs[i], i, true
}

// Schema is the definition of a record type: an ordered set of field definitions, the
// identifier field and the relationships.
//
// Thread-safety: all methods can be called concurrently. AddField and RemoveField only
// affect records materialized afterwards.
type Schema struct {
	cfg      SchemaConfig
	idName   string
	outbound map[string]string
	layout   atomic.Pointer[layout]

	mu      sync.Mutex // serializes layout changes
	factory atomic.Pointer[CollectionFactory]
}

// NewSchema validates cfg and compiles the field definitions.
//
// Duplicate field names and invalid field configurations return an error with code
// common.ErrCConfiguration, reserved names an error with code common.ErrCReservedName.
// A field.create event is emitted for every registered field.
func NewSchema(cfg SchemaConfig) (*Schema, error) {
	if cfg.Name == "" {
		cfg.Name = "record"
	}
	if cfg.LogSize < 0 {
		cfg.LogSize = 0
	}
	cfg.Fields = append([]field.Config(nil), cfg.Fields...)

	s := &Schema{cfg: cfg, outbound: make(map[string]string, len(cfg.Remap))}
	for ext, name := range cfg.Remap {
		s.outbound[name] = ext
	}

	idName, err := resolveIDField(cfg)
	if err != nil {
		return nil, err
	}
	s.idName = idName

	// the identifier field comes first if it was not declared
	configs := cfg.Fields
	if !declares(configs, idName) {
		configs = append([]field.Config{{Name: idName, ID: true}}, configs...)
	}

	l := &layout{pos: map[string]int{}, relations: map[string]*Relation{}, dependents: map[string][]int{}}
	for _, fc := range configs {
		if err := s.register(l, fc); err != nil {
			return nil, err
		}
	}
	if err := l.check(); err != nil {
		return nil, err
	}
	s.layout.Store(l)

	for _, def := range l.defs {
		s.emit(event.FieldCreate, def)
	}
	return s, nil
}

func declares(configs []field.Config, name string) bool {
	for _, fc := range configs {
		if fc.Name == name {
			return true
		}
	}
	return false
}

func resolveIDField(cfg SchemaConfig) (string, error) {
	flagged := ""
	for _, fc := range cfg.Fields {
		if !fc.ID {
			continue
		}
		if flagged != "" {
			return "", common.Errorf(common.ErrCConfiguration, fc.Name, "schema %s has more than one identifier field (%s, %s)", cfg.Name, flagged, fc.Name)
		}
		flagged = fc.Name
	}
	switch {
	case cfg.IDField != "" && flagged != "" && flagged != cfg.IDField:
		return "", common.Errorf(common.ErrCConfiguration, flagged, "field is flagged as identifier but the schema uses %s", cfg.IDField)
	case cfg.IDField != "":
		return cfg.IDField, nil
	case flagged != "":
		return flagged, nil
	default:
		return ReservedID, nil
	}
}

// register adds the definition of fc to l
func (s *Schema) register(l *layout, fc field.Config) error {
	if _, dup := l.pos[fc.Name]; dup {
		return common.Errorf(common.ErrCConfiguration, fc.Name, "duplicate field name in schema %s", s.cfg.Name)
	}
	isID := fc.Name == s.idName
	if IsReserved(fc.Name) && !isID {
		return common.Errorf(common.ErrCReservedName, fc.Name, "field name is reserved")
	}

	rel, isRel := relationOf(fc)
	if isRel {
		if isID {
			return common.Errorf(common.ErrCConfiguration, fc.Name, "the identifier cannot be a relationship")
		}
		fc.Default = nil
		fc.Type = field.TypeAny
	}
	if isID {
		fc.ID = true
	}

	def, err := field.Define(fc)
	if err != nil {
		return err
	}

	l.pos[fc.Name] = len(l.defs)
	l.defs = append(l.defs, def)
	if isID {
		l.id = len(l.defs) - 1
	}
	if isRel {
		l.relations[fc.Name] = rel
	}
	return nil
}

// check resolves the dependencies of virtual fields
func (l *layout) check() error {
	l.dependents = map[string][]int{}
	for i, def := range l.defs {
		for _, dep := range def.DependsOn() {
			if _, ok := l.pos[dep]; !ok {
				return common.Errorf(common.ErrCConfiguration, def.Name(), "depends on unknown field %s", dep)
			}
			l.dependents[dep] = append(l.dependents[dep], i)
		}
	}
	return nil
}

// clone copies l so it can be modified
func (l *layout) clone() *layout {
	cp := &layout{
		defs:      append([]*field.Definition(nil), l.defs...),
		pos:       make(map[string]int, len(l.pos)),
		relations: make(map[string]*Relation, len(l.relations)),
		id:        l.id,
	}
	for k, v := range l.pos {
		cp.pos[k] = v
	}
	for k, v := range l.relations {
		cp.relations[k] = v
	}
	return cp
}

// --------------------------------------------------------------------------
// Schema evolution
// --------------------------------------------------------------------------

// AddField registers a new field for records materialized from now on and emits field.create
func (s *Schema) AddField(fc field.Config) error {
	s.mu.Lock()
	l := s.layout.Load().clone()
	if err := s.register(l, fc); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := l.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.layout.Store(l)
	s.mu.Unlock()

	def, _, _ := l.lookup(fc.Name)
	s.emit(event.FieldCreate, def)
	return nil
}

// RemoveField removes a field for records materialized from now on and emits field.remove
func (s *Schema) RemoveField(name string) error {
	s.mu.Lock()
	old := s.layout.Load()
	def, _, ok := old.lookup(name)
	if !ok {
		s.mu.Unlock()
		return common.Errorf(common.ErrCConfiguration, name, "schema %s has no such field", s.cfg.Name)
	}
	if def.IsID() {
		s.mu.Unlock()
		return common.Errorf(common.ErrCConfiguration, name, "the identifier field cannot be removed")
	}
	if deps := old.dependents[name]; len(deps) > 0 {
		s.mu.Unlock()
		return common.Errorf(common.ErrCConfiguration, name, "field is used by virtual field %s", old.defs[deps[0]].Name())
	}

	l := &layout{pos: map[string]int{}, relations: map[string]*Relation{}}
	for _, d := range old.defs {
		if d.Name() == name {
			continue
		}
		l.pos[d.Name()] = len(l.defs)
		l.defs = append(l.defs, d)
		if d.IsID() {
			l.id = len(l.defs) - 1
		}
		if rel, ok := old.relations[d.Name()]; ok {
			l.relations[d.Name()] = rel
		}
	}
	if err := l.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.layout.Store(l)
	s.mu.Unlock()

	s.emit(event.FieldRemove, def)
	return nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (s *Schema) Name() string                { return s.cfg.Name }
func (s *Schema) IDField() string             { return s.idName }
func (s *Schema) AutoID() bool                { return s.cfg.AutoID }
func (s *Schema) Strict() bool                { return s.cfg.Strict }
func (s *Schema) TTL() time.Duration          { return s.cfg.TTL }
func (s *Schema) LogSize() int                { return s.cfg.LogSize }
func (s *Schema) Observer() event.Observer    { return s.cfg.Observer }
func (s *Schema) String() string              { return fmt.Sprintf("Schema{%s}", s.cfg.Name) }
func (s *Schema) Config() SchemaConfig        { return s.cfg }
func (s *Schema) current() *layout            { return s.layout.Load() }
func (s *Schema) outboundName(n string) string { return orDefault(s.outbound[n], n) }

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Fields returns the current field definitions in declaration order
func (s *Schema) Fields() []*field.Definition {
	return append([]*field.Definition(nil), s.current().defs...)
}

// Names returns the current field names in declaration order
func (s *Schema) Names() []string {
	defs := s.current().defs
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name()
	}
	return names
}

// Field returns the current definition of a field
func (s *Schema) Field(name string) (*field.Definition, bool) {
	def, _, ok := s.current().lookup(name)
	return def, ok
}

// Relation returns the relationship of a field
func (s *Schema) Relation(name string) (*Relation, bool) {
	rel, ok := s.current().relations[name]
	return rel, ok
}

// Relations returns all relationship fields in declaration order
func (s *Schema) Relations() []*Relation {
	l := s.current()
	var out []*Relation
	for _, d := range l.defs {
		if rel, ok := l.relations[d.Name()]; ok {
			out = append(out, rel)
		}
	}
	return out
}

// SetCollectionFactory installs the factory used for collection relationships.
// It is not replaced if one is already installed and force is false.
func (s *Schema) SetCollectionFactory(f CollectionFactory, force bool) {
	if f == nil {
		return
	}
	if force {
		s.factory.Store(&f)
		return
	}
	s.factory.CompareAndSwap(nil, &f)
}

func (s *Schema) collectionFactory() CollectionFactory {
	if f := s.factory.Load(); f != nil {
		return *f
	}
	return nil
}

func (s *Schema) emit(t event.Type, def *field.Definition) {
	event.Notify(s.cfg.Observer, event.Event{Type: t, Source: s.cfg.Name, Target: def})
}
