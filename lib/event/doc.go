// Package event defines the change events emitted by fields, records, indexes and stores.
//
// There is no process wide bus. Every component that emits events takes an Observer
// through its configuration and delivers its events to it synchronously and in order.
// Bus is a small fan-out Observer for callers that want several subscribers, and
// Recorder collects events (mainly for tests and tooling).
//
// Event surface (type, target, delta):
//
//	field.create     *field.Field        -
//	field.update     *field.Field/Record FieldDelta
//	field.remove     *field.Field        -
//	field.invalid    *field.Field/Record FieldDelta
//	field.valid      *field.Field/Record FieldDelta
//	field.hide       *field.Field/Record -
//	field.unhide     *field.Field/Record -
//	record.create    *model.Record       -
//	record.delete    *model.Record       -
//	record.restored  *model.Record       -
//	record.moved     *model.Record       MoveDelta
//	record.expired   *model.Record       -
//	clear, loaded, reloaded, compact     -
//	reset, index.update (Index)
package event
