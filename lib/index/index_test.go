package index

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/field"
)

func newIndex(t *testing.T, btree bool) (*Index, *event.Recorder) {
	t.Helper()
	rec := &event.Recorder{}
	idx, err := New(Config{Field: "val", Type: field.TypeAny, BTree: btree, Observer: rec})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return idx, rec
}

func equalIDs(a []interface{}, b ...interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewRejectsUnorderedBTree(t *testing.T) {
	if _, err := New(Config{Field: "name", Type: field.TypeString, BTree: true}); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
	if _, err := New(Config{Field: "name", Type: field.TypeString}); err != nil {
		t.Errorf("Hash index on strings should be accepted: %v", err)
	}
}

func TestAddGetRemove(t *testing.T) {
	idx, _ := newIndex(t, false)
	idx.Add("a", 1)
	idx.Add("b", 2)
	idx.Add("a", 3)

	if !equalIDs(idx.Get("a"), 1, 3) {
		t.Errorf("Expected [1 3], got %v", idx.Get("a"))
	}
	if idx.Len() != 2 || idx.Size() != 3 {
		t.Errorf("Expected 2 values and 3 ids, got %d/%d", idx.Len(), idx.Size())
	}

	if !idx.Remove(1, "a") {
		t.Fatal("Remove should succeed")
	}
	if idx.Remove(1, "a") {
		t.Error("Removing twice should fail")
	}
	if !idx.Remove(2, "b") {
		t.Fatal("Remove should succeed")
	}
	if idx.Has("b") || idx.Len() != 1 {
		t.Errorf("Empty bucket should be pruned, values=%v", idx.Values())
	}
	if !equalIDs(idx.Get("a"), 3) {
		t.Errorf("Expected [3], got %v", idx.Get("a"))
	}
}

func TestNumbersShareBuckets(t *testing.T) {
	idx, _ := newIndex(t, false)
	idx.Add(14, 1)
	idx.Add(int64(14), 2)
	idx.Add(14.0, 3)
	if len(idx.Get(uint8(14))) != 3 || idx.Len() != 1 {
		t.Errorf("Numeric values should be normalized, got %v", idx.Values())
	}
}

func TestPurge(t *testing.T) {
	idx, _ := newIndex(t, false)
	idx.Add("x", 1)
	idx.Add("y", 2)
	if !idx.Purge(1) {
		t.Fatal("Purge should find id 1")
	}
	if idx.Has("x") || idx.Contains(1, "x") {
		t.Error("id 1 should be gone")
	}
	if idx.Purge(1) {
		t.Error("Purging an absent id should return false")
	}
}

func TestUpdateEmitsSingleEvent(t *testing.T) {
	idx, rec := newIndex(t, true)
	idx.Add(1, "r")
	rec.Reset()

	idx.Update("r", 1, 2)
	if rec.Count(event.IndexUpdate) != 1 {
		t.Errorf("Expected one index.update, got %v", rec.Types())
	}
	if idx.Has(1) || !idx.Contains("r", 2) {
		t.Error("Update did not move the id")
	}

	idx.Update("r", 2, 2.0)
	if rec.Count(event.IndexUpdate) != 1 {
		t.Error("Update to an equal value should be a no-op")
	}
}

func TestReset(t *testing.T) {
	idx, rec := newIndex(t, true)
	idx.Add(1, "a")
	idx.Reset()
	if idx.Len() != 0 || idx.Size() != 0 || len(idx.Range(nil, nil)) != 0 {
		t.Error("Reset should clear buckets and tree")
	}
	if rec.Count(event.IndexReset) != 1 {
		t.Errorf("Expected reset event, got %v", rec.Types())
	}
}

func TestBTreeRange(t *testing.T) {
	idx, _ := newIndex(t, true)
	for i, v := range []int{17, 13, 14, 14, 20, 3} {
		idx.Add(v, i)
	}

	if got := idx.Range(13, 17); !equalIDs(got, 1, 2, 3, 0) {
		t.Errorf("Range(13, 17): expected [1 2 3 0], got %v", got)
	}
	if got := idx.Range(nil, 13); !equalIDs(got, 5, 1) {
		t.Errorf("Range(nil, 13): expected [5 1], got %v", got)
	}
	if got := idx.Range(18, nil); !equalIDs(got, 4) {
		t.Errorf("Range(18, nil): expected [4], got %v", got)
	}

	values := idx.Values()
	want := []interface{}{3, 13, 14, 17, 20}
	if !equalIDs(values, want...) {
		t.Errorf("Values should be ordered: %v", values)
	}
}

// TestBTreeConsistentAfterPruning removes buckets from the middle so that the last
// bucket is moved into their positions
func TestBTreeConsistentAfterPruning(t *testing.T) {
	idx, _ := newIndex(t, true)
	for i := 0; i < 50; i++ {
		idx.Add(i, i)
	}
	for i := 0; i < 50; i += 2 {
		idx.Remove(i, i)
	}

	got := idx.Range(nil, nil)
	if len(got) != 25 {
		t.Fatalf("Expected 25 ids, got %d", len(got))
	}
	for i, id := range got {
		if id != 2*i+1 {
			t.Fatalf("Range out of order at %d: %v", i, got)
		}
	}
	for i := 1; i < 50; i += 2 {
		if !equalIDs(idx.Get(i), i) {
			t.Errorf("Bucket of %d is broken: %v", i, idx.Get(i))
		}
	}
}

func TestBTreeDates(t *testing.T) {
	idx, _ := newIndex(t, true)
	base := time.UnixMilli(1700000000000)
	idx.Add(base.Add(2*time.Hour), "late")
	idx.Add(base, "early")
	idx.Add("not ordered", "text")

	if got := idx.Range(base, base.Add(time.Hour)); !equalIDs(got, "early") {
		t.Errorf("Expected [early], got %v", got)
	}
	if !equalIDs(idx.Get("not ordered"), "text") {
		t.Error("Values without order key must still be hash indexed")
	}
}

func TestReAddKeepsSingleEntry(t *testing.T) {
	idx, _ := newIndex(t, false)
	idx.Add("a", 1)
	idx.Add("a", 2)
	idx.Remove(1, "a")
	idx.Add("a", 1)
	if !equalIDs(idx.Get("a"), 1, 2) && !equalIDs(idx.Get("a"), 2, 1) {
		t.Errorf("Expected both ids once, got %v", idx.Get("a"))
	}
	if len(idx.Get("a")) != 2 {
		t.Errorf("Expected 2 ids, got %v", idx.Get("a"))
	}
}

func TestInfo(t *testing.T) {
	idx, _ := newIndex(t, false)
	idx.Add("a", 1)
	idx.Add("a", 2)
	idx.Add("b", 3)
	info := idx.Info()
	if info.Values != 2 || info.IDs != 3 || info.Field != "val" {
		t.Errorf("Unexpected info %+v", info)
	}
	if info.Buckets.Largest != 2 || info.Buckets.Singletons != 1 || info.Buckets.IDs != 3 {
		t.Errorf("Unexpected bucket distribution %+v", info.Buckets)
	}
}

func TestSliceValuesDoNotCollide(t *testing.T) {
	idx, _ := newIndex(t, false)
	idx.Add([]interface{}{"a b"}, 1)
	idx.Add([]interface{}{"a", "b"}, 2)
	idx.Add([]interface{}{"a", "b"}, 3)

	if idx.Len() != 2 {
		t.Fatalf("Expected 2 unique values, got %d", idx.Len())
	}
	if ids := idx.Get([]interface{}{"a", "b"}); !equalIDs(ids, 2, 3) {
		t.Errorf("Expected [2 3], got %v", ids)
	}
	if ids := idx.Get([]interface{}{"a b"}); !equalIDs(ids, 1) {
		t.Errorf("Expected [1], got %v", ids)
	}
	if !idx.Remove(1, []interface{}{"a b"}) || idx.Len() != 1 {
		t.Errorf("Remove of a slice value failed: %v", idx)
	}
}

func TestNaNSharesOneBucket(t *testing.T) {
	for _, btree := range []bool{false, true} {
		idx, _ := newIndex(t, btree)
		idx.Add(math.NaN(), 1)
		idx.Add(math.NaN(), 2)
		idx.Add(1.5, 3)

		if idx.Len() != 2 {
			t.Errorf("btree=%v: expected 2 unique values, got %d", btree, idx.Len())
		}
		if len(idx.Values()) != 2 {
			t.Errorf("btree=%v: expected NaN in Values(), got %v", btree, idx.Values())
		}
		if ids := idx.Get(math.NaN()); !equalIDs(ids, 1, 2) {
			t.Errorf("btree=%v: expected [1 2], got %v", btree, ids)
		}
		if !idx.Remove(1, math.NaN()) || !idx.Remove(2, math.NaN()) {
			t.Errorf("btree=%v: NaN ids should be removable", btree)
		}
		if idx.Len() != 1 || idx.Size() != 1 {
			t.Errorf("btree=%v: expected only 1.5 left, got %v", btree, idx)
		}
	}
}

func TestLargeIntegersKeepDistinctBuckets(t *testing.T) {
	idx, _ := newIndex(t, false)
	idx.Add(int64(1<<53), 1)
	idx.Add(int64(1<<53+1), 2)
	idx.Add(uint64(math.MaxUint64), 3)
	idx.Add(uint64(math.MaxUint64-1), 4)

	if idx.Len() != 4 {
		t.Errorf("Expected 4 unique values, got %d", idx.Len())
	}
	if ids := idx.Get(int64(1<<53 + 1)); !equalIDs(ids, 2) {
		t.Errorf("Expected [2], got %v", ids)
	}
}
