// Package util provides the generic building blocks used by the field, index, expiry and store packages.
//
// The package contains:
//   - functions: value normalisation (numbers, dates, index keys), deep copies and hashing
//   - mapheap: a priority queue that also supports key-based access, used for expiration deadlines
//   - auditlog: a bounded append log with a cursor implementing linear undo/redo
//   - statistics: distribution statistics used to report index bucket skew
//
// None of the types in this package are thread-safe, callers have to synchronize access.
package util
