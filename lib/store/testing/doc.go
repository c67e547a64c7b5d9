// Package testing provides a standardised test suite and benchmarks for stores.
//
// The suite runs against any store configuration (hard or soft delete, shared or owned
// scheduler) and only relies on the public store API. Assertions that depend on the
// delete mode check Store.SoftDelete.
//
// Example usage:
//
//	factory := func(cfg store.Config) (*store.Store, error) {
//		cfg.SoftDelete = true
//		return store.New(cfg)
//	}
//
//	storetesting.RunStoreTests(t, "SoftDelete", factory)
//	storetesting.RunStoreBenchmarks(b, "SoftDelete", factory)
package testing
