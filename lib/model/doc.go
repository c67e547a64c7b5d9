// Package model implements schemas and records.
//
// A Schema is an ordered set of field definitions with a designated identifier field.
// Records are materialized with Schema.New and hold one field instance per definition.
// Field events of a record are delivered to its Owner (usually a store) or, for
// standalone records, to the observer of the schema.
//
// Relationship fields are declared through the default value of a field:
//
//	field.Config{Name: "address", Default: addressSchema}             // nested record
//	field.Config{Name: "pets", Default: petStore}                      // a store spawned per record
//	field.Config{Name: "tags", Default: []interface{}{tagSchema}}      // a collection of tagSchema records
//
// Records may carry an expiration deadline. Reaching it fires record.expired exactly once.
package model
