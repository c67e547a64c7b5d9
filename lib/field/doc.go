// Package field implements typed, validated value slots.
//
// A Definition is the immutable, validated configuration of a field: its name, type,
// default value, flags and the compiled, ordered rule list. Definitions are created
// once per schema with Define. A Field is one instance of a definition holding the
// current raw value, the modified flag, the visibility flag and a bounded audit log.
//
// Assignment semantics (Field.Set):
//   - All rules run in order: required, type, pattern, range, enum, reject, custom rules.
//     The failures of all rules are aggregated into a single error.
//   - If any rule fails and the field does not allow invalid values, the raw value is left
//     untouched and an error with code common.ErrCValidation is returned.
//   - Otherwise a field.invalid event fires for a failing value, or a field.valid event when the
//     field becomes valid again. The transformer (if any) runs, the value is stored, an audit
//     entry is appended and a field.update event fires unconditionally.
//
// Undo and Redo walk the audit log. A fresh assignment after an undo discards every entry
// beyond the cursor (linear undo/redo).
//
// Compound values (slices, maps, dates) must not be mutated in place. ManagedValue wraps a
// field and exposes explicit mutation methods that go through Set, so the owner is notified.
package field
