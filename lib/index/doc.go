// Package index implements secondary indexes over a single record field.
//
// Every index keeps one bucket of record identifiers per unique field value. Values are
// normalized with util.HashKey, so 14, int64(14) and 14.0 share a bucket. Indexes in
// B-tree mode additionally keep an ordered tree (github.com/google/btree) from the order
// key of a value (numbers, dates as epoch milliseconds) to its bucket position, which
// enables range queries. Buckets and tree are updated together by every mutation.
//
// Indexes are not safe for concurrent use, they are guarded by the store owning them.
package index
