package field

import (
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/util"
)

// slot is one state of a field in its audit log
type slot struct {
	value interface{}
	set   bool
}

// Field is a single instance of a Definition.
//
// Thread-safety: a Field is not safe for concurrent use. Fields owned by a record are
// guarded by the store the record belongs to.
type Field struct {
	def *Definition

	raw      interface{}
	set      bool
	modified bool
	hidden   bool
	valid    bool
	err      error

	log *util.AuditLog[slot]

	// virtual fields
	resolver func(name string) interface{}
	cache    interface{}
	cached   bool

	observer event.Observer
}

// New defines a field from cfg and returns an unset instance of it
func New(cfg Config) (*Field, error) {
	def, err := Define(cfg)
	if err != nil {
		return nil, err
	}
	return def.Instance(), nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (f *Field) Name() string                 { return f.def.cfg.Name }
func (f *Field) Definition() *Definition      { return f.def }
func (f *Field) IsSet() bool                  { return f.set }
func (f *Field) Modified() bool               { return f.modified }
func (f *Field) Hidden() bool                 { return f.hidden }
func (f *Field) Valid() bool                  { return f.valid }
func (f *Field) Err() error                   { return f.err }
func (f *Field) SetObserver(o event.Observer) { f.observer = o }

// SetResolver installs the lookup used by virtual fields to read the other fields of their record
func (f *Field) SetResolver(fn func(name string) interface{}) {
	f.resolver = fn
	f.cached = false
	f.cache = nil
}

// Raw returns the stored value and whether the field has been assigned at all
func (f *Field) Raw() (interface{}, bool) {
	return f.raw, f.set
}

// Value returns the current value of the field: the stored value, the default if the field
// is unset, or the (cached) computed value of a virtual field.
func (f *Field) Value() interface{} {
	if f.def.IsVirtual() {
		if !f.cached {
			get := f.resolver
			if get == nil {
				get = func(string) interface{} { return nil }
			}
			f.cache = f.def.cfg.Compute(get)
			f.cached = true
		}
		return f.cache
	}
	if f.set {
		return f.raw
	}
	return util.DeepCopy(f.def.cfg.Default)
}

// --------------------------------------------------------------------------
// Assignment
// --------------------------------------------------------------------------

// Set validates and assigns v.
//
// If v violates a rule and the field does not allow invalid values, nothing changes and
// an error with code common.ErrCValidation is returned. Identifier fields can only be
// assigned once and virtual fields never, both return an error with code common.ErrCReadOnly.
func (f *Field) Set(v interface{}) error {
	if err := f.writable(); err != nil {
		return err
	}

	ruleErr := f.def.Validate(v)
	if ruleErr != nil && !f.def.cfg.AllowInvalid {
		return common.Wrap(common.ErrCValidation, f.Name(), "invalid value", ruleErr)
	}
	f.transition(v, ruleErr)

	if t := f.def.cfg.Transform; t != nil {
		v = t(v)
	}

	old := f.Value()
	f.baseline()
	f.raw, f.set, f.modified = v, true, true
	if f.log != nil {
		f.log.Push(slot{value: v, set: true})
	}

	f.emit(event.FieldUpdate, event.FieldDelta{Field: f.Name(), Old: old, New: v})
	return nil
}

// Init assigns the initial value of a field when a record is materialized.
// The value is validated like in Set but no events are emitted and no audit entry is written.
func (f *Field) Init(v interface{}) error {
	if f.def.IsVirtual() {
		return common.Errorf(common.ErrCReadOnly, f.Name(), "virtual fields cannot be assigned")
	}
	ruleErr := f.def.Validate(v)
	if ruleErr != nil && !f.def.cfg.AllowInvalid {
		return common.Wrap(common.ErrCValidation, f.Name(), "invalid value", ruleErr)
	}
	f.valid, f.err = ruleErr == nil, ruleErr
	if t := f.def.cfg.Transform; t != nil {
		v = t(v)
	}
	f.raw, f.set = v, true
	return nil
}

func (f *Field) writable() error {
	if f.def.IsVirtual() {
		return common.Errorf(common.ErrCReadOnly, f.Name(), "virtual fields cannot be assigned")
	}
	if f.def.cfg.ID && f.set {
		return common.Errorf(common.ErrCReadOnly, f.Name(), "identifier is already set to %v", f.raw)
	}
	return nil
}

// transition updates the validity state and emits field.invalid for a failing value
// or field.valid if the field was invalid before.
func (f *Field) transition(v interface{}, ruleErr error) {
	wasValid := f.valid
	f.valid, f.err = ruleErr == nil, ruleErr
	switch {
	case ruleErr != nil:
		plog.Debugf("field %s accepted invalid value %v: %v", f.Name(), v, ruleErr)
		f.emit(event.FieldInvalid, event.FieldDelta{Field: f.Name(), New: v, Err: ruleErr})
	case !wasValid:
		f.emit(event.FieldValid, event.FieldDelta{Field: f.Name(), New: v})
	}
}

// baseline creates the audit log on first use and records the state before the first write
func (f *Field) baseline() {
	if f.log != nil || f.def.cfg.LogSize < 0 || f.def.cfg.ID {
		return
	}
	size := f.def.cfg.LogSize
	if size == 0 {
		size = defaultLogSize
	}
	f.log = util.NewAuditLog[slot](size + 1)
	f.log.Push(slot{value: f.raw, set: f.set})
}

// --------------------------------------------------------------------------
// Undo / Redo
// --------------------------------------------------------------------------

// CanUndo reports whether there is an older state in the audit log
func (f *Field) CanUndo() bool {
	return f.log != nil && f.log.Cursor() > 0
}

// CanRedo reports whether an undone state can be restored
func (f *Field) CanRedo() bool {
	return f.log != nil && f.log.Cursor()+1 < f.log.Len()
}

// Undo restores the previous state. It returns false if there is nothing to undo.
func (f *Field) Undo() bool {
	if !f.CanUndo() {
		return false
	}
	f.log.Back()
	s, _ := f.log.Current()
	f.apply(s)
	return true
}

// Redo re-applies the last undone state. It returns false if there is nothing to redo.
func (f *Field) Redo() bool {
	if !f.CanRedo() {
		return false
	}
	s, _ := f.log.Forward()
	f.apply(s)
	return true
}

func (f *Field) apply(s slot) {
	old := f.Value()
	f.raw, f.set, f.modified = s.value, s.set, true
	f.transition(f.Value(), f.def.Validate(f.Value()))
	f.emit(event.FieldUpdate, event.FieldDelta{Field: f.Name(), Old: old, New: f.Value()})
}

// History returns the logged values, oldest first (including values beyond the undo cursor)
func (f *Field) History() []interface{} {
	if f.log == nil {
		return nil
	}
	entries := f.log.Entries()
	out := make([]interface{}, len(entries))
	for i, s := range entries {
		out[i] = s.value
	}
	return out
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// Reset returns the field to its unset state and clears the audit log.
// A field.update event is emitted if the field was set.
func (f *Field) Reset() {
	wasSet := f.set
	old := f.Value()
	f.raw, f.set, f.modified = nil, false, false
	f.valid, f.err = true, nil
	f.log = nil
	f.cached, f.cache = false, nil
	if wasSet {
		f.emit(event.FieldUpdate, event.FieldDelta{Field: f.Name(), Old: old, New: f.Value()})
	}
}

// Invalidate drops the cached value of a virtual field.
// If the value had been computed before, it is recomputed and a field.update event is
// emitted when it changed.
func (f *Field) Invalidate() {
	if !f.def.IsVirtual() || !f.cached {
		return
	}
	old := f.cache
	f.cached, f.cache = false, nil
	if v := f.Value(); !util.Equal(old, v) {
		f.emit(event.FieldUpdate, event.FieldDelta{Field: f.Name(), Old: old, New: v})
	}
}

// Hide excludes the field from serialisation. Emits field.hide if the visibility changed.
func (f *Field) Hide() {
	if f.hidden {
		return
	}
	f.hidden = true
	f.emit(event.FieldHide, nil)
}

// Unhide includes the field in serialisation again. Emits field.unhide if the visibility changed.
func (f *Field) Unhide() {
	if !f.hidden {
		return
	}
	f.hidden = false
	f.emit(event.FieldUnhide, nil)
}

// Clone returns an independent copy of the field with a deep copy of its value.
// The copy has no observer, no resolver and an empty audit log.
func (f *Field) Clone() *Field {
	return &Field{
		def:      f.def,
		raw:      util.DeepCopy(f.raw),
		set:      f.set,
		modified: f.modified,
		hidden:   f.hidden,
		valid:    f.valid,
		err:      f.err,
	}
}

// Managed returns a wrapper with explicit mutation methods for compound values
func (f *Field) Managed() *ManagedValue {
	return &ManagedValue{f: f}
}

func (f *Field) emit(t event.Type, delta interface{}) {
	if f.observer == nil {
		return
	}
	f.observer.Notify(event.Event{Type: t, Source: f.Name(), Target: f, Delta: delta})
}
