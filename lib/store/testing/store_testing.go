package testing

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/field"
	"github.com/ValentinKolb/recstore/lib/model"
	"github.com/ValentinKolb/recstore/lib/store"
)

// StoreFactory creates a store from a config the suite prepared (schema, observer).
// Implementations may set any other option, e.g. soft delete or a shared scheduler.
type StoreFactory func(cfg store.Config) (*store.Store, error)

// RunStoreTests runs the store test suite against the stores created by factory
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("AddGet", func(t *testing.T) {
			testAddGet(t, factory)
		})

		t.Run("RemoveRestore", func(t *testing.T) {
			testRemoveRestore(t, factory)
		})

		t.Run("Index", func(t *testing.T) {
			testIndex(t, factory)
		})

		t.Run("Filters", func(t *testing.T) {
			testFilters(t, factory)
		})

		t.Run("Ordering", func(t *testing.T) {
			testOrdering(t, factory)
		})

		t.Run("Events", func(t *testing.T) {
			testEvents(t, factory)
		})

		t.Run("Expiry", func(t *testing.T) {
			testExpiry(t, factory)
		})

		t.Run("LoadReload", func(t *testing.T) {
			testLoadReload(t, factory)
		})

		t.Run("Compact", func(t *testing.T) {
			testCompact(t, factory)
		})

		t.Run("Changelog", func(t *testing.T) {
			testChangelog(t, factory)
		})

		t.Run("Snapshot", func(t *testing.T) {
			testSnapshot(t, factory)
		})

		t.Run("Clone", func(t *testing.T) {
			testClone(t, factory)
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// PersonSchema returns the schema used by the suite
func PersonSchema() (*model.Schema, error) {
	return model.NewSchema(model.SchemaConfig{
		Name:   "person",
		AutoID: true,
		Fields: []field.Config{
			{Name: "first_name", Type: field.TypeString, Required: true},
			{Name: "last_name", Type: field.TypeString},
			{Name: "age", Type: field.TypeInt},
		},
	})
}

func newStore(t testing.TB, factory StoreFactory, o event.Observer) *store.Store {
	t.Helper()
	schema, err := PersonSchema()
	if err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	s, err := factory(store.Config{Schema: schema, Observer: o})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func person(id interface{}, first, last string, age int) map[string]interface{} {
	return map[string]interface{}{"id": id, "first_name": first, "last_name": last, "age": age}
}

func mustAdd(t testing.TB, s *store.Store, data ...map[string]interface{}) []*model.Record {
	t.Helper()
	recs, err := s.Add(data...)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return recs
}

// names returns the first names of the records
func names(recs []*model.Record) string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i], _ = r.Get("first_name").(string)
	}
	return strings.Join(out, ",")
}

// waitFor polls cond until it holds or the timeout elapses
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testAddGet(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory, nil)

	recs := mustAdd(t, s, person(1, "John", "Doe", 30), person(2, "Jill", "Doe", 28))
	if s.Size() != 2 || s.Length() != 2 {
		t.Errorf("Expected size and length 2, got %d/%d", s.Size(), s.Length())
	}
	if s.Get(1) != recs[0] || !s.Has(2) || s.Has(3) {
		t.Errorf("Get/Has do not match the added records")
	}
	// numbers of different types identify the same record
	if s.Get(1.0) != recs[0] {
		t.Errorf("Expected lookup by 1.0 to find record 1")
	}
	if s.First() != recs[0] || s.Last() != recs[1] || s.At(2) != nil {
		t.Errorf("First/Last/At do not match the insertion order")
	}

	// duplicates reject the whole batch
	_, err := s.Add(person(3, "Jake", "Doe", 5), person(1, "John", "Again", 1))
	if err == nil {
		t.Errorf("Expected error for duplicate identifier")
	}
	if s.Size() != 2 || s.Has(3) {
		t.Errorf("Failed Add must not add any record, size %d", s.Size())
	}

	// invalid data rejects the whole batch
	_, err = s.Add(person(4, "Jim", "Doe", 1), map[string]interface{}{"last_name": "Nameless"})
	if err == nil {
		t.Errorf("Expected error for a missing required field")
	}
	if s.Size() != 2 {
		t.Errorf("Expected size 2 after failed Add, got %d", s.Size())
	}

	// identifiers are generated when missing
	gen := mustAdd(t, s, map[string]interface{}{"first_name": "Anon"})
	if gen[0].ID() == nil || s.Get(gen[0].ID()) != gen[0] {
		t.Errorf("Expected a generated identifier, got %v", gen[0].ID())
	}

	// records cannot belong to two stores
	other := newStore(t, factory, nil)
	if err := other.AddRecords(recs[0]); err == nil {
		t.Errorf("Expected error when adding a record owned by another store")
	}
}

func testRemoveRestore(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory, nil)
	mustAdd(t, s, person(1, "John", "Doe", 30), person(2, "Jill", "Doe", 28), person(3, "Jake", "Doe", 4))

	removed := s.Remove(store.Pos(0))
	if removed == nil || removed.Get("first_name") != "John" {
		t.Fatalf("Expected to remove John, got %v", removed)
	}
	if s.Size() != 2 {
		t.Errorf("Expected size 2 after remove, got %d", s.Size())
	}
	if s.Remove(removed) != nil {
		t.Errorf("Removing a removed record must return nil")
	}
	if s.Remove(42) != nil {
		t.Errorf("Removing an unknown id must return nil")
	}

	if !s.SoftDelete() {
		if s.Length() != 2 {
			t.Errorf("Expected length 2 after hard delete, got %d", s.Length())
		}
		if s.Restore(removed) != nil {
			t.Errorf("Restore must return nil without soft delete")
		}
		return
	}

	if s.Length() != 3 {
		t.Errorf("Expected length 3 after soft delete, got %d", s.Length())
	}
	if !s.IsDeleted(removed) || !s.Has(1) {
		t.Errorf("Soft-deleted record should stay in the backing list")
	}
	if s.Restore(removed) != removed {
		t.Fatalf("Expected Restore to return the removed record")
	}
	if s.Size() != 3 || s.Length() != 3 {
		t.Errorf("Expected size and length 3 after restore, got %d/%d", s.Size(), s.Length())
	}
	if got := names(s.Records()); got != "John,Jill,Jake" {
		t.Errorf("Expected original order after restore, got %s", got)
	}
	if s.Restore(removed) != nil {
		t.Errorf("Restoring an active record must return nil")
	}
}

func testIndex(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory, nil)
	if err := s.CreateIndex("age", true); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	if err := s.CreateIndex("age", false); err == nil {
		t.Errorf("Expected error for a second index on age")
	}
	if err := s.CreateIndex("unknown", false); err == nil {
		t.Errorf("Expected error for an index on an unknown field")
	}

	recs := mustAdd(t, s,
		person("a", "Ann", "A", 17),
		person("b", "Bob", "B", 13),
		person("c", "Cid", "C", 14),
		person("d", "Dan", "D", 14),
	)

	got := s.GetIndexRecords("age", 14)
	if len(got) != 2 || got[0] != recs[2] || got[1] != recs[3] {
		t.Errorf("Expected [Cid Dan] for age 14, got %s", names(got))
	}
	if r := s.GetIndexRange("age", 13, 14); len(r) != 3 || r[0] != recs[1] {
		t.Errorf("Expected 3 records in [13, 14] starting with Bob, got %s", names(r))
	}
	if r := s.GetIndexRange("age", 15, nil); len(r) != 1 || r[0] != recs[0] {
		t.Errorf("Expected [Ann] for age >= 15, got %s", names(r))
	}

	// updates move the record to its new bucket
	if err := recs[2].Set("age", 20); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := s.GetIndexRecords("age", 14); len(got) != 1 || got[0] != recs[3] {
		t.Errorf("Expected [Dan] for age 14 after update, got %s", names(got))
	}
	if got := s.GetIndexRecords("age", 20.0); len(got) != 1 || got[0] != recs[2] {
		t.Errorf("Expected [Cid] for age 20 after update, got %s", names(got))
	}

	s.Remove(recs[3])
	if got := s.GetIndexRecords("age", 14); len(got) != 0 {
		t.Errorf("Removed records must not be returned, got %s", names(got))
	}

	// fields without an index are scanned
	if got := s.GetIndexRecords("first_name", "Bob"); len(got) != 1 || got[0] != recs[1] {
		t.Errorf("Expected [Bob] from a scan, got %s", names(got))
	}
	if s.GetIndexRange("first_name", "a", "z") != nil {
		t.Errorf("Range queries need a btree index")
	}

	infos := s.Indexes()
	if len(infos) != 1 || infos[0].Field != "age" || !infos[0].BTree || infos[0].IDs != 3 {
		t.Errorf("Unexpected index info %+v", infos)
	}
	s.RemoveIndex()
	if len(s.Indexes()) != 0 {
		t.Errorf("Expected no indexes after RemoveIndex")
	}
}

func testFilters(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory, nil)
	recs := mustAdd(t, s,
		person(1, "John", "Doe", 30),
		person(2, "Jane", "Doe", 28),
		person(3, "Max", "Doe", 60),
		person(4, "Jill", "Smith", 22),
	)

	err := s.AddFilter("doe_family", func(r *model.Record) bool { return r.Get("last_name") == "Doe" })
	if err != nil {
		t.Fatalf("AddFilter failed: %v", err)
	}
	if err := s.AddFilterExpr("j_names", `record.first_name.startsWith("J")`); err != nil {
		t.Fatalf("AddFilterExpr failed: %v", err)
	}
	if got := names(s.Records()); got != "John,Jane" {
		t.Errorf("Expected the intersection John,Jane, got %s", got)
	}
	if err := s.AddFilter("j_names", func(*model.Record) bool { return true }); err == nil {
		t.Errorf("Expected error for a duplicate filter name")
	}
	if err := s.AddFilterExpr("broken", "record.age +"); err == nil {
		t.Errorf("Expected error for an invalid expression")
	}

	if !s.RemoveFilter("doe_family") {
		t.Fatalf("RemoveFilter failed")
	}
	if got := names(s.Records()); got != "John,Jane,Jill" {
		t.Errorf("Expected John,Jane,Jill after removing doe_family, got %s", got)
	}

	s.DisableFilter("j_names")
	if s.Size() != 4 {
		t.Errorf("Expected 4 records with the filter disabled, got %d", s.Size())
	}
	s.EnableFilter("j_names")
	if s.Size() != 3 {
		t.Errorf("Expected 3 records with the filter enabled, got %d", s.Size())
	}

	// updates re-evaluate the filters
	if err := recs[2].Set("first_name", "Jo"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if s.Size() != 4 {
		t.Errorf("Expected the renamed record to pass the filter, size %d", s.Size())
	}

	// filtered records are still stored and indexed
	if s.Length() != 4 || !s.Has(4) {
		t.Errorf("Filters must not remove records")
	}
	s.Filter()
	if s.Size() != 4 {
		t.Errorf("Filter() must be idempotent, got size %d", s.Size())
	}
	if got := s.Filters(); len(got) != 1 || got[0] != "j_names" {
		t.Errorf("Unexpected filters %v", got)
	}
}

func testOrdering(t *testing.T, factory StoreFactory) {
	rec := &event.Recorder{}
	s := newStore(t, factory, rec)
	recs := mustAdd(t, s, person("a", "A", "", 0), person("b", "B", "", 0), person("c", "C", "", 0))

	if _, err := s.InsertBefore(recs[1], person("x", "X", "", 0)); err != nil {
		t.Fatalf("InsertBefore failed: %v", err)
	}
	if _, err := s.InsertAfter("c", person("y", "Y", "", 0)); err != nil {
		t.Fatalf("InsertAfter failed: %v", err)
	}
	if _, err := s.InsertAfter("missing", person("z", "Z", "", 0)); err != nil {
		t.Fatalf("InsertAfter with an invalid anchor failed: %v", err)
	}
	if got := names(s.Records()); got != "A,X,B,C,Y,Z" {
		t.Errorf("Unexpected order after inserts: %s", got)
	}

	rec.Reset()
	if !s.MoveToStart("y") {
		t.Fatalf("MoveToStart failed")
	}
	if got := names(s.Records()); got != "Y,A,X,B,C,Z" {
		t.Errorf("Unexpected order after move: %s", got)
	}
	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != event.RecordMoved {
		t.Fatalf("Expected one record.moved event, got %v", rec.Types())
	}
	if d, ok := evs[0].Delta.(event.MoveDelta); !ok || d.From != 4 || d.To != 0 {
		t.Errorf("Expected move delta {4 0}, got %v", evs[0].Delta)
	}
	s.MoveToEnd(store.Pos(0))
	if got := names(s.Records()); got != "A,X,B,C,Z,Y" {
		t.Errorf("Unexpected order after MoveToEnd: %s", got)
	}

	first, last := s.First(), s.Last()
	if first.Next(1, false) != s.At(1) {
		t.Errorf("Next(1) should return the second record")
	}
	if last.Next(1, false) != nil || first.Previous(1, false) != nil {
		t.Errorf("Stepping out of the view without cycle must return nil")
	}
	if last.Next(1, true) != first || first.Previous(1, true) != last {
		t.Errorf("Cycling must wrap around the view")
	}
	if first.Next(7, true) != s.At(1) {
		t.Errorf("Next(7, cycle) on 6 records should return position 1")
	}
	if last.Next(8, true) != s.At(1) {
		t.Errorf("Next(8, cycle) from the last of 6 records should return position 1")
	}
	if last.Next(6, true) != last || first.Previous(8, true) != s.At(4) {
		t.Errorf("Cycling more than the view size must wrap modulo the size")
	}
}

func testEvents(t *testing.T, factory StoreFactory) {
	var s *store.Store
	rec := &event.Recorder{}
	sizes := make([]int, 0)
	var mu sync.Mutex
	// observers may call back into the store
	s = newStore(t, factory, event.ObserverFunc(func(ev event.Event) {
		size := s.Size()
		mu.Lock()
		sizes = append(sizes, size)
		mu.Unlock()
		rec.Notify(ev)
	}))

	recs := mustAdd(t, s, person(1, "John", "Doe", 30), person(2, "Jill", "Doe", 28))
	if rec.Count(event.RecordCreate) != 2 {
		t.Errorf("Expected 2 record.create events, got %v", rec.Types())
	}

	rec.Reset()
	if err := recs[0].Set("age", 31); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != event.FieldUpdate || evs[0].Target != recs[0] {
		t.Fatalf("Expected one field.update for John, got %v", rec.Types())
	}
	if d := evs[0].Delta.(event.FieldDelta); d.Field != "age" || d.Old != 30 || d.New != 31 {
		t.Errorf("Unexpected delta %+v", d)
	}

	// failed writes do not emit updates
	rec.Reset()
	if err := recs[0].Set("age", "old"); err == nil {
		t.Errorf("Expected validation error")
	}
	if rec.Count(event.FieldUpdate) != 0 {
		t.Errorf("A rejected write must not emit field.update")
	}

	rec.Reset()
	s.Remove(recs[1])
	if types := rec.Types(); len(types) != 1 || types[0] != event.RecordDelete {
		t.Errorf("Expected one record.delete, got %v", types)
	}

	s.Clear()
	if rec.Count(event.StoreClear) != 1 || s.Size() != 0 {
		t.Errorf("Expected clear event and an empty store")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sizes) == 0 {
		t.Errorf("Observer was never called")
	}
}

func testExpiry(t *testing.T, factory StoreFactory) {
	rec := &event.Recorder{}
	s := newStore(t, factory, rec)
	recs := mustAdd(t, s, person(1, "John", "Doe", 30), person(2, "Jill", "Doe", 28))
	if err := s.CreateIndex("age", false); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	recs[0].ExpireIn(100 * time.Millisecond)
	if !waitFor(2*time.Second, func() bool { return rec.Count(event.RecordExpired) > 0 }) {
		t.Fatalf("Record did not expire")
	}
	time.Sleep(50 * time.Millisecond)
	if n := rec.Count(event.RecordExpired); n != 1 {
		t.Errorf("Expected record.expired exactly once, got %d", n)
	}
	if s.Has(1) || s.Size() != 1 || s.Length() != 1 {
		t.Errorf("Expired record must be purged, size %d length %d", s.Size(), s.Length())
	}
	if len(s.GetIndexRecords("age", 30)) != 0 {
		t.Errorf("Expired record must be removed from the indexes")
	}
	if !recs[0].Expired() {
		t.Errorf("Record should report Expired")
	}

	// a new deadline cancels the pending expiration
	rec.Reset()
	recs[1].ExpireIn(100 * time.Millisecond)
	recs[1].ExpireIn(time.Hour)
	time.Sleep(250 * time.Millisecond)
	if rec.Count(event.RecordExpired) != 0 || !s.Has(2) {
		t.Fatalf("Reset deadline must cancel the pending expiration")
	}
	recs[1].ExpireIn(20 * time.Millisecond)
	if !waitFor(2*time.Second, func() bool { return !s.Has(2) }) {
		t.Fatalf("Record did not expire after the deadline was reset")
	}
	time.Sleep(50 * time.Millisecond)
	if n := rec.Count(event.RecordExpired); n != 1 {
		t.Errorf("Expected record.expired exactly once, got %d", n)
	}

	// removed records do not expire
	recs = mustAdd(t, s, person(3, "Jake", "Doe", 4))
	recs[0].ExpireIn(50 * time.Millisecond)
	s.Remove(recs[0])
	rec.Reset()
	time.Sleep(150 * time.Millisecond)
	if rec.Count(event.RecordExpired) != 0 {
		t.Errorf("Removed record must not expire")
	}
}

func testLoadReload(t *testing.T, factory StoreFactory) {
	rec := &event.Recorder{}
	s := newStore(t, factory, rec)

	n := 1000
	data := make([]map[string]interface{}, n)
	for i := range data {
		data[i] = person(i, fmt.Sprintf("first-%d", i), "Load", i)
	}
	if err := s.Load(data); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.Count(event.StoreLoaded) != 1 || rec.Count(event.RecordCreate) != 0 {
		t.Errorf("Expected exactly one loaded event and no record.create, got %d events", len(rec.Events()))
	}
	if s.Size() != n {
		t.Errorf("Expected %d records, got %d", n, s.Size())
	}
	for _, i := range []int{0, n / 2, n - 1} {
		if got := s.At(i).Get("first_name"); got != fmt.Sprintf("first-%d", i) {
			t.Errorf("Record %d: expected first-%d, got %v", i, i, got)
		}
	}

	// a failing load leaves the store unchanged
	if err := s.Load([]map[string]interface{}{person(0, "dup", "Load", 0)}); err == nil {
		t.Errorf("Expected error when loading a duplicate identifier")
	}
	if s.Size() != n || rec.Count(event.StoreLoaded) != 1 {
		t.Errorf("Failed load must not change the store")
	}

	if err := s.Reload(data[:10]); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if rec.Count(event.StoreReloaded) != 1 || s.Size() != 10 || s.Length() != 10 {
		t.Errorf("Expected 10 records after reload, got %d", s.Size())
	}
	if s.Has(500) {
		t.Errorf("Reload must replace the records")
	}
}

func testCompact(t *testing.T, factory StoreFactory) {
	rec := &event.Recorder{}
	s := newStore(t, factory, rec)
	recs := mustAdd(t, s,
		person(1, "A", "", 0), person(2, "B", "", 0), person(3, "C", "", 0),
		person(4, "D", "", 0), person(5, "E", "", 0),
	)
	s.Remove(recs[1])
	s.Remove(recs[3])

	size := s.Size()
	purged := s.Compact()
	if s.Size() != size {
		t.Errorf("Compact must not change the size, %d != %d", s.Size(), size)
	}
	if s.Length() != s.Size() {
		t.Errorf("Expected length == size after compact, got %d/%d", s.Length(), s.Size())
	}
	want := 0
	if s.SoftDelete() {
		want = 2
	}
	if purged != want {
		t.Errorf("Expected %d purged records, got %d", want, purged)
	}
	if rec.Count(event.StoreCompact) != 1 {
		t.Errorf("Expected one compact event")
	}
	if s.Restore(recs[1]) != nil {
		t.Errorf("Restore after compact must return nil")
	}
	if got := names(s.Records()); got != "A,C,E" {
		t.Errorf("Unexpected records after compact: %s", got)
	}

	// add, remove and compact restores the previous counts
	length, size := s.Length(), s.Size()
	added := mustAdd(t, s, person(6, "F", "", 0), person(7, "G", "", 0))
	for _, r := range added {
		s.Remove(r)
	}
	s.Compact()
	if s.Length() != length || s.Size() != size {
		t.Errorf("Expected length/size %d/%d after add, remove and compact, got %d/%d", length, size, s.Length(), s.Size())
	}
}

func testChangelog(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory, nil)
	recs := mustAdd(t, s, person(1, "A", "", 0), person(2, "B", "", 0))

	ch := s.CommitChanges()
	if len(ch.Create) != 2 || len(ch.Update) != 0 || len(ch.Delete) != 0 {
		t.Errorf("Expected two creates, got %+v", ch)
	}
	if !s.Changes().Empty() {
		t.Errorf("Expected no changes after commit")
	}

	_ = recs[0].Set("age", 1)
	_ = recs[0].Set("age", 2)
	s.Remove(recs[1])
	tmp := mustAdd(t, s, person(3, "C", "", 0))
	_ = tmp[0].Set("age", 3)
	s.Remove(tmp[0])

	ch = s.Changes()
	if len(ch.Update) != 1 || ch.Update[0] != recs[0] {
		t.Errorf("Expected one update for A, got %d", len(ch.Update))
	}
	if len(ch.Delete) != 1 || ch.Delete[0] != recs[1] {
		t.Errorf("Expected one delete for B, got %d", len(ch.Delete))
	}
	if len(ch.Create) != 0 {
		t.Errorf("A record removed before commit must not be created, got %d", len(ch.Create))
	}

	// changes returns a copy
	ch.Update = nil
	if len(s.Changes().Update) != 1 {
		t.Errorf("Changes must return a copy")
	}

	s.CommitChanges()
	if s.SoftDelete() {
		s.Restore(recs[1])
		if ch := s.Changes(); len(ch.Create) != 1 || ch.Create[0] != recs[1] {
			t.Errorf("Restoring a committed delete must create the record again")
		}
	}
}

func testSnapshot(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory, nil)
	recs := mustAdd(t, s, person(1, "John", "Doe", 30), person(2, "Jill", "Doe", 28))

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	_ = recs[0].Set("first_name", "Changed")
	s.Remove(recs[1])

	ds, err := snap.Dataset()
	if err != nil {
		t.Fatalf("Dataset failed: %v", err)
	}
	if len(ds) != 2 || snap.Size != 2 {
		t.Fatalf("Expected 2 records in the snapshot, got %d", len(ds))
	}
	if ds[0]["first_name"] != "John" {
		t.Errorf("Snapshot must not observe later changes, got %v", ds[0]["first_name"])
	}
	if len(s.Snapshots()) != 1 {
		t.Errorf("Expected one kept snapshot")
	}
}

func testClone(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory, nil)
	mustAdd(t, s, person(1, "John", "Doe", 30), person(2, "Jill", "Doe", 28), person(3, "Jake", "Doe", 4))
	_ = s.CreateIndex("age", false)
	_ = s.AddFilter("adults", func(r *model.Record) bool {
		age, _ := r.Get("age").(int)
		return age >= 18
	})
	s.Remove(1)

	c := s.Clone()
	defer c.Close()
	if c.Size() != s.Size() || c.Length() != s.Length() {
		t.Errorf("Clone must have the same size and length, got %d/%d", c.Size(), c.Length())
	}
	if len(c.Filters()) != 1 || len(c.Indexes()) != 1 {
		t.Errorf("Clone must copy filters and indexes")
	}

	cj := c.Get(2)
	if cj == nil || cj == s.Get(2) {
		t.Fatalf("Clone must contain copies of the records")
	}
	_ = cj.Set("first_name", "Changed")
	if s.Get(2).Get("first_name") != "Jill" {
		t.Errorf("Changes of the clone must not affect the original")
	}
	c.Remove(2)
	if !s.Has(2) || s.Size() != 1 {
		t.Errorf("Removing from the clone must not affect the original")
	}
	if len(c.GetIndexRecords("age", 28)) != 0 || len(s.GetIndexRecords("age", 28)) != 1 {
		t.Errorf("Clone indexes must be independent")
	}
}

func testConcurrency(t *testing.T, factory StoreFactory) {
	rec := &event.Recorder{}
	s := newStore(t, factory, rec)
	if err := s.CreateIndex("age", true); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	workers, perWorker := 8, 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				recs, err := s.Add(person(fmt.Sprintf("%d-%d", w, i), "Worker", "", i))
				if err != nil {
					t.Errorf("Add failed: %v", err)
					return
				}
				_ = recs[0].Set("age", i+1)
				_ = s.Size()
				if i%10 == 0 {
					s.Remove(recs[0])
				}
			}
		}(w)
	}
	wg.Wait()

	removed := workers * (perWorker / 10)
	if s.Size() != workers*perWorker-removed {
		t.Errorf("Expected %d records, got %d", workers*perWorker-removed, s.Size())
	}
	if got := len(s.GetIndexRecords("age", 2)); got != workers {
		t.Errorf("Expected %d records with age 2, got %d", workers, got)
	}
	if rec.Count(event.RecordCreate) != workers*perWorker {
		t.Errorf("Expected %d record.create events, got %d", workers*perWorker, rec.Count(event.RecordCreate))
	}
}
