package model

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/field"
	"github.com/ValentinKolb/recstore/lib/util"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"sync"
	"sync/atomic"
	"time"
)

// Owner is the collection a record belongs to. Stores implement Owner to keep their
// indexes consistent and to provide traversal over their active view.
type Owner interface {
	// FieldChanged is called after a field of r changed
	FieldChanged(r *Record, ev event.Event)
	// RecordExpired is called once when the deadline of r has been reached
	RecordExpired(r *Record)
	// Step returns the record n positions away from r in the active view (nil if there is none)
	Step(r *Record, n int, cycle bool) *Record
}

// Change is an entry of the per-record audit log
type Change struct {
	Field string
	Old   interface{}
	New   interface{}
}

// Record is one materialized instance of a schema.
//
// Thread-safety: field access is not synchronized. Records owned by a store must only be
// modified from one goroutine at a time. The expiration state is safe for concurrent use.
type Record struct {
	schema  *Schema
	layout  *layout
	fields  []*field.Field
	created time.Time

	log       *util.AuditLog[Change]
	replaying bool

	mu       sync.Mutex // guards owner and the expiration state
	owner    Owner
	deadline time.Time
	timer    *time.Timer
	gen      uint64
	expired  atomic.Bool
}

// New materializes a record from data.
//
// Keys are remapped to field names first. Unknown keys are ignored unless the schema is
// strict. Missing required fields and values violating the field rules return an error
// with code common.ErrCValidation.
func (s *Schema) New(data map[string]interface{}) (*Record, error) {
	l := s.current()
	r := &Record{
		schema:  s,
		layout:  l,
		fields:  make([]*field.Field, len(l.defs)),
		created: time.Now(),
	}
	if s.cfg.LogSize > 0 {
		r.log = util.NewAuditLog[Change](s.cfg.LogSize)
	}

	values := make(map[string]interface{}, len(data))
	var result *multierror.Error
	for k, v := range data {
		name := orDefault(s.cfg.Remap[k], k)
		if _, ok := l.pos[name]; !ok {
			if s.cfg.Strict {
				result = multierror.Append(result, fmt.Errorf("unknown field %s", k))
			}
			continue
		}
		values[name] = v
	}

	for i, def := range l.defs {
		f := def.Instance()
		r.fields[i] = f
		v, present := values[def.Name()]

		switch {
		case def.IsVirtual():
			continue
		case l.relations[def.Name()] != nil:
			nested, err := r.buildRelation(l.relations[def.Name()], v, present)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if nested != nil {
				_ = f.Init(nested)
			}
		case present:
			if err := f.Init(v); err != nil {
				result = multierror.Append(result, err)
			}
		case def.Required() && def.Default() == nil && !def.IsID():
			result = multierror.Append(result, fmt.Errorf("field %s is required", def.Name()))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, common.Wrap(common.ErrCValidation, "", fmt.Sprintf("invalid %s record", s.cfg.Name), err)
	}

	r.attach()
	return r, nil
}

// attach connects the fields to the record
func (r *Record) attach() {
	sink := (*recordSink)(r)
	for _, f := range r.fields {
		f.SetObserver(sink)
		if f.Definition().IsVirtual() {
			f.SetResolver(r.Get)
		}
	}
}

// buildRelation converts the data of a relationship field to a nested record or collection
func (r *Record) buildRelation(rel *Relation, v interface{}, present bool) (interface{}, error) {
	switch nested := v.(type) {
	case *Record:
		if rel.Manner != MannerModel {
			return nil, fmt.Errorf("field %s expects a collection, got a record", rel.Field)
		}
		return nested, nil
	case Collection:
		if rel.Manner == MannerModel {
			return nil, fmt.Errorf("field %s expects a record, got a collection", rel.Field)
		}
		return nested, nil
	}

	if rel.Manner == MannerModel {
		if !present || v == nil {
			return nil, nil
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %s expects an object, got %T", rel.Field, v)
		}
		return rel.Schema.New(m)
	}

	items, err := toItems(rel.Field, v)
	if err != nil {
		return nil, err
	}
	var coll Collection
	if rel.Manner == MannerStore {
		coll = rel.template.Spawn()
	} else {
		factory := r.schema.collectionFactory()
		if factory == nil {
			return nil, common.Errorf(common.ErrCConfiguration, rel.Field, "schema %s has no collection factory", r.schema.Name())
		}
		if coll, err = factory(rel.Schema); err != nil {
			return nil, err
		}
	}
	if err := coll.Append(items...); err != nil {
		return nil, err
	}
	return coll, nil
}

func toItems(name string, v interface{}) ([]map[string]interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []map[string]interface{}:
		return t, nil
	case []interface{}:
		items := make([]map[string]interface{}, 0, len(t))
		for _, e := range t {
			m, ok := e.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("field %s expects a list of objects, got element %T", name, e)
			}
			items = append(items, m)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("field %s expects a list of objects, got %T", name, v)
	}
}

// --------------------------------------------------------------------------
// Field access
// --------------------------------------------------------------------------

func (r *Record) Schema() *Schema     { return r.schema }
func (r *Record) Created() time.Time { return r.created }

func (r *Record) String() string {
	id, _ := r.fields[r.layout.id].Raw()
	return fmt.Sprintf("Record{%s %v}", r.schema.Name(), id)
}

// ID returns the identifier of the record. For AutoID schemas a UUID is generated on
// first access if the record has none.
func (r *Record) ID() interface{} {
	f := r.fields[r.layout.id]
	if !f.IsSet() && r.schema.cfg.AutoID {
		return r.AssignID()
	}
	return f.Value()
}

// AssignID generates a UUID identifier if the record has none and returns the identifier
func (r *Record) AssignID() interface{} {
	f := r.fields[r.layout.id]
	if f.IsSet() {
		return f.Value()
	}
	if err := f.Init(uuid.NewString()); err != nil {
		plog.Warningf("cannot generate identifier for %s record: %v", r.schema.Name(), err)
		return nil
	}
	return f.Value()
}

// Field returns the field instance with the given name
func (r *Record) Field(name string) (*field.Field, bool) {
	_, i, ok := r.layout.lookup(name)
	if !ok {
		return nil, false
	}
	return r.fields[i], true
}

// Fields returns the field instances in declaration order
func (r *Record) Fields() []*field.Field {
	return append([]*field.Field(nil), r.fields...)
}

// Names returns the field names of the record in declaration order
func (r *Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name()
	}
	return names
}

// Has reports whether the record has a field with the given name
func (r *Record) Has(name string) bool {
	_, ok := r.layout.pos[name]
	return ok
}

// Get returns the value of a field (nil for unknown fields)
func (r *Record) Get(name string) interface{} {
	f, ok := r.Field(name)
	if !ok {
		return nil
	}
	return f.Value()
}

// Set assigns a value to a field. Data for relationship fields is converted to a nested
// record or collection first.
func (r *Record) Set(name string, v interface{}) error {
	f, ok := r.Field(name)
	if !ok {
		return common.Errorf(common.ErrCValidation, name, "%s records have no such field", r.schema.Name())
	}
	if rel, ok := r.layout.relations[name]; ok {
		nested, err := r.buildRelation(rel, v, true)
		if err != nil {
			return common.Wrap(common.ErrCValidation, name, "invalid relationship value", err)
		}
		v = nested
	}
	return f.Set(v)
}

// Relation returns the nested record or collection of a relationship field
func (r *Record) Relation(name string) (interface{}, *Relation, bool) {
	rel, ok := r.layout.relations[name]
	if !ok {
		return nil, nil, false
	}
	return r.Get(name), rel, true
}

// Valid reports whether every field holds a valid value
func (r *Record) Valid() bool {
	for _, f := range r.fields {
		if !f.Valid() {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Owner & traversal
// --------------------------------------------------------------------------

// Owner returns the collection the record belongs to (nil for standalone records)
func (r *Record) Owner() Owner {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// SetOwner moves the record into (or out of, with nil) a collection.
// A pending expiration is re-scheduled on the new owner.
func (r *Record) SetOwner(o Owner) {
	r.mu.Lock()
	prev := r.owner
	r.owner = o
	pending := !r.deadline.IsZero() && !r.expired.Load()
	if pending {
		r.stopLocked(prev)
		r.scheduleLocked()
	}
	r.mu.Unlock()
}

// Next returns the record n positions after r in the active view of its owner.
// With cycle the step wraps around the end of the view.
func (r *Record) Next(n int, cycle bool) *Record {
	if o := r.Owner(); o != nil {
		return o.Step(r, n, cycle)
	}
	return nil
}

// Previous returns the record n positions before r in the active view of its owner
func (r *Record) Previous(n int, cycle bool) *Record {
	if o := r.Owner(); o != nil {
		return o.Step(r, -n, cycle)
	}
	return nil
}

// --------------------------------------------------------------------------
// Audit log
// --------------------------------------------------------------------------

// History returns the logged changes, oldest first
func (r *Record) History() []Change {
	if r.log == nil {
		return nil
	}
	return r.log.Entries()
}

// Undo reverts the last logged change. It returns false if there is nothing to undo.
func (r *Record) Undo() bool {
	if r.log == nil {
		return false
	}
	c, ok := r.log.Back()
	if !ok {
		return false
	}
	r.replay(c.Field, c.Old)
	return true
}

// Redo re-applies the last undone change. It returns false if there is nothing to redo.
func (r *Record) Redo() bool {
	if r.log == nil {
		return false
	}
	c, ok := r.log.Forward()
	if !ok {
		return false
	}
	r.replay(c.Field, c.New)
	return true
}

func (r *Record) replay(name string, v interface{}) {
	f, ok := r.Field(name)
	if !ok {
		return
	}
	r.replaying = true
	defer func() { r.replaying = false }()
	if err := f.Set(v); err != nil {
		plog.Warningf("cannot restore %s of %s: %v", name, r, err)
	}
}

// --------------------------------------------------------------------------
// Clone
// --------------------------------------------------------------------------

// Clone returns an independent deep copy of the record. Nested records and collections are
// cloned as well. The copy has no owner and no expiration.
func (r *Record) Clone() *Record {
	cp := &Record{
		schema:  r.schema,
		layout:  r.layout,
		fields:  make([]*field.Field, len(r.fields)),
		created: r.created,
	}
	if r.log != nil {
		cp.log = util.NewAuditLog[Change](r.schema.cfg.LogSize)
	}
	for i, f := range r.fields {
		c := f.Clone()
		if _, ok := r.layout.relations[f.Name()]; ok {
			switch nested := f.Value().(type) {
			case *Record:
				_ = c.Init(nested.Clone())
			case Collection:
				_ = c.Init(nested.CloneCollection())
			}
		}
		cp.fields[i] = c
	}
	cp.attach()
	return cp
}

// --------------------------------------------------------------------------
// Field events
// --------------------------------------------------------------------------

// recordSink receives the events of the fields of a record
type recordSink Record

func (s *recordSink) Notify(ev event.Event) {
	r := (*Record)(s)
	if ev.Type == event.FieldUpdate {
		if d, ok := ev.Delta.(event.FieldDelta); ok && r.log != nil && !r.replaying {
			if def, _, ok := r.layout.lookup(d.Field); ok && !def.IsVirtual() {
				r.log.Push(Change{Field: d.Field, Old: d.Old, New: d.New})
			}
		}
		r.deliver(ev)
		// virtual fields emit their own update after the dependency
		for _, i := range r.layout.dependents[ev.Source] {
			r.fields[i].Invalidate()
		}
		return
	}
	r.deliver(ev)
}

// deliver forwards a field event with the record as target
func (r *Record) deliver(ev event.Event) {
	ev.Target = r
	if o := r.Owner(); o != nil {
		o.FieldChanged(r, ev)
		return
	}
	event.Notify(r.schema.cfg.Observer, ev)
}
