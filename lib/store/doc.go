// Package store implements an in-memory record store.
//
// A Store owns the records of one schema. It keeps an append-only backing list of every
// record ever added (soft-deleted records included), the active view (records that are
// not deleted and pass every enabled filter), an identifier map, secondary indexes,
// named filters and serialized snapshots.
//
// Key concepts:
//
//   - Soft delete: with Config.SoftDelete removed records stay in the backing list (outside
//     the active view and the indexes) and can be restored until Compact purges them.
//
//   - Positions: Pos values address the active view, Move operates on backing positions.
//
//   - Events: mutations queue events while the store lock is held. The queue is delivered
//     after the lock has been released, in order, by exactly one goroutine at a time, so
//     observers may call back into the store.
//
//   - Expiration: records with a deadline are purged by an expiry.Scheduler when the
//     deadline is reached and record.expired is emitted exactly once.
//
// Thread Safety:
//
//	The store is safe for concurrent use. Field values of records are not synchronized,
//	a record must only be modified from one goroutine at a time. Filter predicates run
//	with the store lock held and must not call back into the store.
package store
