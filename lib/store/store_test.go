package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/recstore/lib/codec"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/field"
	"github.com/ValentinKolb/recstore/lib/model"
	"github.com/VictoriaMetrics/metrics"
)

func testSchema(t *testing.T) *model.Schema {
	t.Helper()
	s, err := model.NewSchema(model.SchemaConfig{
		Name: "val",
		Fields: []field.Config{
			{Name: "name", Type: field.TypeString},
			{Name: "val", Type: field.TypeInt},
		},
	})
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	return s
}

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Schema == nil {
		cfg.Schema = testSchema(t)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNewRequiresSchema(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
	_, err = New(Config{Schema: testSchema(t), Indexes: []IndexConfig{{Field: "missing"}}})
	if !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("Expected configuration error for an index on a missing field, got %v", err)
	}
	_, err = New(Config{Schema: testSchema(t), Indexes: []IndexConfig{{Field: "name", BTree: true}}})
	if !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("Expected configuration error for a btree on a string field, got %v", err)
	}
}

func TestBTreeIndexScenario(t *testing.T) {
	s := newTestStore(t, Config{Indexes: []IndexConfig{{Field: "val", BTree: true}}})
	recs, err := s.Add(
		map[string]interface{}{"id": 1, "val": 17},
		map[string]interface{}{"id": 2, "val": 13},
		map[string]interface{}{"id": 3, "val": 14},
		map[string]interface{}{"id": 4, "val": 14},
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	got := s.GetIndexRecords("val", 14)
	if len(got) != 2 || got[0] != recs[2] || got[1] != recs[3] {
		t.Errorf("Expected records 3 and 4 in insertion order, got %v", got)
	}

	// backing order, not index order
	s.MoveToStart(4)
	got = s.GetIndexRecords("val", 14)
	if len(got) != 2 || got[0] != recs[3] || got[1] != recs[2] {
		t.Errorf("Expected records 4 and 3 after move, got %v", got)
	}
}

func TestLargeLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large load in short mode")
	}
	rec := &event.Recorder{}
	s := newTestStore(t, Config{Observer: rec})

	n := 200000
	data := make([]map[string]interface{}, n)
	for i := range data {
		data[i] = map[string]interface{}{"id": i, "name": fmt.Sprintf("rec-%d", i), "val": i}
	}
	if err := s.Load(data); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.Count(event.StoreLoaded) != 1 || len(rec.Events()) != 1 {
		t.Errorf("Expected exactly one loaded event, got %d events", len(rec.Events()))
	}
	if s.Size() != n {
		t.Fatalf("Expected %d records, got %d", n, s.Size())
	}
	for _, i := range []int{0, n / 2, n - 1} {
		r := s.At(i)
		if r.Get("name") != fmt.Sprintf("rec-%d", i) || r.Get("val") != i {
			t.Errorf("Record %d does not match the dataset: %v", i, r.Data())
		}
	}
	if d := rec.Events()[0].Delta; d != n {
		t.Errorf("Expected loaded delta %d, got %v", n, d)
	}
}

func TestStepSkipsFilteredRecords(t *testing.T) {
	s := newTestStore(t, Config{})
	recs, _ := s.Add(
		map[string]interface{}{"id": 1, "val": 1},
		map[string]interface{}{"id": 2, "val": 2},
		map[string]interface{}{"id": 3, "val": 3},
	)
	_ = s.AddFilter("odd", func(r *model.Record) bool { return r.Get("val").(int)%2 == 1 })

	if recs[0].Next(1, false) != recs[2] {
		t.Errorf("Next should skip filtered records")
	}
	if recs[1].Next(1, true) != nil {
		t.Errorf("Filtered records have no position")
	}
	if s.Position(recs[2]) != 1 || s.Position(recs[1]) != -1 {
		t.Errorf("Unexpected positions %d/%d", s.Position(recs[2]), s.Position(recs[1]))
	}
}

func TestNestedCollections(t *testing.T) {
	item, err := model.NewSchema(model.SchemaConfig{
		Name:   "item",
		AutoID: true,
		Fields: []field.Config{{Name: "sku", Type: field.TypeString}, {Name: "qty", Type: field.TypeInt}},
	})
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	order, err := model.NewSchema(model.SchemaConfig{
		Name:   "order",
		AutoID: true,
		Fields: []field.Config{{Name: "items", Default: []interface{}{item}}},
	})
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	s := newTestStore(t, Config{Name: "orders", Schema: order})

	recs, err := s.Add(map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"sku": "a", "qty": 1},
			map[string]interface{}{"sku": "b", "qty": 2},
		},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	nested, ok := recs[0].Get("items").(*Store)
	if !ok {
		t.Fatalf("Expected a nested store, got %T", recs[0].Get("items"))
	}
	if nested.Size() != 2 || nested.Name() != "orders.item" {
		t.Errorf("Unexpected nested store %s with %d records", nested.Name(), nested.Size())
	}

	data := s.Data(model.DataOptions{})
	items, ok := data[0]["items"].([]map[string]interface{})
	if !ok || len(items) != 2 || items[1]["sku"] != "b" {
		t.Errorf("Unexpected nested data %v", data[0]["items"])
	}

	// clones do not share nested records
	c := s.Clone()
	defer c.Close()
	cn := c.First().Get("items").(*Store)
	cn.Remove(Pos(0))
	if nested.Size() != 2 || cn.Size() != 1 {
		t.Errorf("Clone must deep copy nested stores")
	}
}

func TestIndexEvents(t *testing.T) {
	rec := &event.Recorder{}
	s := newTestStore(t, Config{Observer: rec, IndexEvents: true, Indexes: []IndexConfig{{Field: "val"}}})
	recs, _ := s.Add(map[string]interface{}{"id": 1, "val": 1})

	rec.Reset()
	_ = recs[0].Set("val", 2)
	types := rec.Types()
	// the index is updated before the field event is delivered
	if len(types) != 2 || types[0] != event.IndexUpdate || types[1] != event.FieldUpdate {
		t.Errorf("Expected [index.update field.update], got %v", types)
	}

	rec.Reset()
	s.RemoveIndex("val")
	if rec.Count(event.IndexReset) != 1 {
		t.Errorf("Expected one reset event, got %v", rec.Types())
	}
}

func TestSnapshotsAreBounded(t *testing.T) {
	s := newTestStore(t, Config{Codec: codec.NewJSONCodec(), MaxSnapshots: 2})
	for i := 0; i < 3; i++ {
		_, _ = s.Add(map[string]interface{}{"id": i, "val": i})
		if _, err := s.Snapshot(); err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
	}
	snaps := s.Snapshots()
	if len(snaps) != 2 || snaps[0].Size != 2 || snaps[1].Size != 3 {
		t.Errorf("Expected the two newest snapshots, got %d", len(snaps))
	}
	if snaps[1].Codec != "json" {
		t.Errorf("Expected json snapshots, got %s", snaps[1].Codec)
	}
	ds, err := snaps[1].Dataset()
	if err != nil || len(ds) != 3 {
		t.Errorf("Failed to decode snapshot: %v", err)
	}
}

func TestInfoAndMetrics(t *testing.T) {
	s := newTestStore(t, Config{Name: "info-test", SoftDelete: true, Indexes: []IndexConfig{{Field: "val"}}})
	recs, _ := s.Add(
		map[string]interface{}{"id": 1, "val": 1},
		map[string]interface{}{"id": 2, "val": 2},
	)
	s.Remove(recs[0])
	recs[1].ExpireIn(1 << 40)

	info := s.Info()
	if info.Size != 1 || info.Length != 2 || info.Deleted != 1 || info.Expiring != 1 {
		t.Errorf("Unexpected info %+v", info)
	}
	if len(info.Indexes) != 1 || info.Indexes[0].IDs != 1 {
		t.Errorf("Unexpected index info %+v", info.Indexes)
	}

	var sb strings.Builder
	metrics.WritePrometheus(&sb, false)
	out := sb.String()
	for _, want := range []string{
		`recstore_records_added_total{store="info-test"} 2`,
		`recstore_records_removed_total{store="info-test"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected metrics output to contain %s", want)
		}
	}
}

func TestDefinitionBuild(t *testing.T) {
	def, err := ParseDefinition([]byte(`
name: people
soft_delete: true
codec: yaml
schema:
  name: person
  autoid: true
  fields:
    - name: first_name
      type: string
      required: true
    - name: last_name
      type: string
    - name: age
      type: int
indexes:
  - field: age
    btree: true
filters:
  - name: doe_family
    expr: record.last_name == "Doe"
`))
	if err != nil {
		t.Fatalf("ParseDefinition failed: %v", err)
	}
	s, err := def.Build(nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer s.Close()

	if !s.SoftDelete() || s.Name() != "people" || len(s.Indexes()) != 1 {
		t.Errorf("Store does not match the definition: %+v", s.Info())
	}
	_, err = s.Add(
		map[string]interface{}{"first_name": "John", "last_name": "Doe", "age": 30},
		map[string]interface{}{"first_name": "Max", "last_name": "Mustermann", "age": 40},
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if s.Size() != 1 || s.First().Get("first_name") != "John" {
		t.Errorf("Expected the filter to keep only John, size %d", s.Size())
	}

	if _, err := ParseDefinition([]byte("name: x\nunknown: 1\n")); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("Expected configuration error for unknown keys, got %v", err)
	}
	bad := &Definition{Name: "bad", Schema: def.Schema, Filters: []FilterDefinition{{Name: "f", Expr: "record."}}}
	if _, err := bad.Build(nil); err == nil {
		t.Errorf("Expected error for an invalid filter expression")
	}
}

func TestChangelogSet(t *testing.T) {
	set := newOrderedSet()
	r1, r2 := &model.Record{}, &model.Record{}
	set.add(r1)
	set.add(r2)
	set.add(r1)
	set.remove(r1)
	set.add(r1)
	if got := set.list(); len(got) != 2 || got[0] != r2 || got[1] != r1 {
		t.Errorf("Unexpected order %v", got)
	}
}

func TestLargeIntegerIdentifiers(t *testing.T) {
	s := newTestStore(t, Config{Indexes: []IndexConfig{{Field: "val"}}})
	a, b := int64(9007199254740992), int64(9007199254740993)
	if _, err := s.Add(map[string]interface{}{"id": a, "val": a}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := s.Add(map[string]interface{}{"id": b, "val": b}); err != nil {
		t.Fatalf("Distinct identifiers above 2^53 must be accepted: %v", err)
	}
	if s.Size() != 2 {
		t.Fatalf("Expected 2 records, got %d", s.Size())
	}
	if r := s.Get(b); r == nil || r.ID() != b {
		t.Errorf("Get(%d) returned %v", b, r)
	}
	if got := s.GetIndexRecords("val", a); len(got) != 1 || got[0].ID() != a {
		t.Errorf("Expected one record for val %d, got %v", a, got)
	}
	s.Remove(a)
	if !s.Has(b) || s.Has(a) {
		t.Errorf("Removing %d must not touch %d", a, b)
	}
}

func TestSliceIndexMatchesScan(t *testing.T) {
	schema, err := model.NewSchema(model.SchemaConfig{
		Name:   "tagged",
		Fields: []field.Config{{Name: "tags", Type: field.TypeSlice}},
	})
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	s := newTestStore(t, Config{Schema: schema})
	if _, err := s.Add(
		map[string]interface{}{"id": 1, "tags": []interface{}{"a b"}},
		map[string]interface{}{"id": 2, "tags": []interface{}{"a", "b"}},
	); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	query := []interface{}{"a", "b"}
	scanned := s.GetIndexRecords("tags", query)
	if err := s.CreateIndex("tags", false); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	indexed := s.GetIndexRecords("tags", query)
	if len(scanned) != 1 || len(indexed) != 1 || scanned[0] != indexed[0] || indexed[0].ID() != 2 {
		t.Errorf("Indexed lookup %v and scan %v must both return record 2", indexed, scanned)
	}
}

func TestNestedStoresShareScheduler(t *testing.T) {
	item, err := model.NewSchema(model.SchemaConfig{
		Name:   "item",
		AutoID: true,
		TTL:    100 * time.Millisecond,
		Fields: []field.Config{{Name: "sku", Type: field.TypeString}},
	})
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	order, err := model.NewSchema(model.SchemaConfig{
		Name:   "order",
		AutoID: true,
		Fields: []field.Config{{Name: "items", Default: []interface{}{item}}},
	})
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	s := newTestStore(t, Config{Name: "orders", Schema: order})

	recs, err := s.Add(map[string]interface{}{
		"items": []interface{}{map[string]interface{}{"sku": "a"}, map[string]interface{}{"sku": "b"}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	nested := recs[0].Get("items").(*Store)
	if nested.sched.Load() != nil {
		t.Errorf("Nested store must not start its own scheduler")
	}
	if nested.running() == nil || nested.running() != s.running() {
		t.Errorf("Nested store must use the scheduler of its parent")
	}

	c := s.Clone()
	defer c.Close()
	cn := c.First().Get("items").(*Store)
	if cn.running() != c.running() || c.running() == s.running() {
		t.Errorf("Cloned nested stores must use the scheduler of the clone")
	}

	deadline := time.Now().Add(2 * time.Second)
	for nested.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if nested.Size() != 0 {
		t.Errorf("Nested records should expire on the parent's scheduler, %d left", nested.Size())
	}

	s.Close()
	if !nested.isClosed() {
		t.Errorf("Closing the parent must close the nested store")
	}
}
