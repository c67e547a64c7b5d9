package index

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/field"
	"github.com/ValentinKolb/recstore/lib/util"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
	"math"
)

var plog = logger.GetLogger("index")

// degree of the B-tree
const degree = 16

// Config is the configuration of an index
type Config struct {
	Field    string         // Name of the indexed field
	Type     field.Type     // Declared type of the field
	BTree    bool           // Keep an ordered tree for range queries (ordered types only)
	Observer event.Observer // Receives index.update and reset events (optional)
}

// bucket holds the identifiers of all records with the same value
type bucket struct {
	ids   map[interface{}]interface{} // normalized id -> id
	order []interface{}               // normalized ids in insertion order (may contain removed ids)
}

func newBucket() *bucket {
	return &bucket{ids: make(map[interface{}]interface{}, 1)}
}

func (b *bucket) add(k, id interface{}) bool {
	if _, ok := b.ids[k]; ok {
		return false
	}
	b.ids[k] = id
	b.order = append(b.order, k)
	return true
}

func (b *bucket) remove(k interface{}) bool {
	if _, ok := b.ids[k]; !ok {
		return false
	}
	delete(b.ids, k)
	// compact the order list once it is mostly garbage
	if len(b.order) > 8 && len(b.order) > 2*len(b.ids) {
		live := b.order[:0]
		for _, o := range b.order {
			if _, ok := b.ids[o]; ok {
				live = append(live, o)
			}
		}
		b.order = live
	}
	return true
}

func (b *bucket) list() []interface{} {
	out := make([]interface{}, 0, len(b.ids))
	// a removed and re-added id appears twice in order
	var seen map[interface{}]struct{}
	if len(b.order) > len(b.ids) {
		seen = make(map[interface{}]struct{}, len(b.ids))
	}
	for _, k := range b.order {
		id, ok := b.ids[k]
		if !ok {
			continue
		}
		if seen != nil {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, id)
	}
	return out
}

// item is an entry of the ordered tree
type item struct {
	key float64
	pos int
}

// treeKey is the order key of value. NaN has no place in the tree and stays hash only.
func treeKey(value interface{}) (float64, bool) {
	key, ok := util.OrderKey(value)
	return key, ok && !math.IsNaN(key)
}

func less(a, b item) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.pos < b.pos
}

// --------------------------------------------------------------------------
// Index
// --------------------------------------------------------------------------

// Index maps the values of one field to the identifiers of the records holding them
type Index struct {
	cfg Config

	values  []interface{}       // unique values
	buckets []*bucket           // parallel to values
	pos     map[interface{}]int // normalized value -> position
	tree    *btree.BTreeG[item] // nil in hash mode
	ids     int

	suppress bool
}

// New creates an empty index. B-tree mode is only valid for ordered field types and
// returns an error with code common.ErrCConfiguration otherwise.
func New(cfg Config) (*Index, error) {
	if cfg.Field == "" {
		return nil, common.NewError(common.ErrCConfiguration, "index field must not be empty")
	}
	if cfg.BTree && !cfg.Type.Ordered() {
		return nil, common.Errorf(common.ErrCConfiguration, cfg.Field, "B-tree indexes require an ordered field type, got %s", cfg.Type)
	}
	idx := &Index{cfg: cfg, pos: make(map[interface{}]int)}
	if cfg.BTree {
		idx.tree = btree.NewG[item](degree, less)
	}
	return idx, nil
}

func (idx *Index) Field() string { return idx.cfg.Field }
func (idx *Index) BTree() bool   { return idx.tree != nil }

// Len returns the number of unique values
func (idx *Index) Len() int { return len(idx.values) }

// Size returns the number of indexed identifiers
func (idx *Index) Size() int { return idx.ids }

func (idx *Index) String() string {
	return fmt.Sprintf("Index{%s, values: %d, ids: %d, btree: %v}", idx.cfg.Field, len(idx.values), idx.ids, idx.tree != nil)
}

// SetObserver replaces the observer of the index
func (idx *Index) SetObserver(o event.Observer) { idx.cfg.Observer = o }

// --------------------------------------------------------------------------
// Mutation
// --------------------------------------------------------------------------

// Add inserts id into the bucket of value
func (idx *Index) Add(value, id interface{}) {
	k := util.HashKey(value)
	p, ok := idx.pos[k]
	if !ok {
		p = len(idx.values)
		idx.values = append(idx.values, value)
		idx.buckets = append(idx.buckets, newBucket())
		idx.pos[k] = p
		if idx.tree != nil {
			if key, ordered := treeKey(value); ordered {
				idx.tree.ReplaceOrInsert(item{key: key, pos: p})
			}
		}
	}
	if idx.buckets[p].add(util.HashKey(id), id) {
		idx.ids++
		idx.emit(event.IndexUpdate, id, nil, value)
	}
}

// Remove deletes id from the bucket of value. Removing an id that is not indexed under
// value logs a warning and returns false.
func (idx *Index) Remove(id, value interface{}) bool {
	p, ok := idx.pos[util.HashKey(value)]
	if !ok || !idx.buckets[p].remove(util.HashKey(id)) {
		plog.Warningf("index %s: %v is not indexed under %v", idx.cfg.Field, id, value)
		return false
	}
	idx.ids--
	if len(idx.buckets[p].ids) == 0 {
		idx.drop(p)
	}
	idx.emit(event.IndexUpdate, id, value, nil)
	return true
}

// Purge removes id from every bucket. It scans all buckets and is meant for callers
// that do not know the value id was indexed under.
func (idx *Index) Purge(id interface{}) bool {
	k := util.HashKey(id)
	found := false
	for p := len(idx.buckets) - 1; p >= 0; p-- {
		if !idx.buckets[p].remove(k) {
			continue
		}
		found = true
		idx.ids--
		value := idx.values[p]
		if len(idx.buckets[p].ids) == 0 {
			idx.drop(p)
		}
		idx.emit(event.IndexUpdate, id, value, nil)
	}
	if !found {
		plog.Warningf("index %s: %v is not indexed", idx.cfg.Field, id)
	}
	return found
}

// Update moves id from the bucket of old to the bucket of new. Only a single index.update
// event is emitted.
func (idx *Index) Update(id, old, new interface{}) {
	if util.HashKey(old) == util.HashKey(new) {
		return
	}
	idx.suppress = true
	idx.Remove(id, old)
	idx.Add(new, id)
	idx.suppress = false
	idx.emit(event.IndexUpdate, id, old, new)
}

// drop removes the empty bucket at p by moving the last bucket into its place
func (idx *Index) drop(p int) {
	last := len(idx.values) - 1
	idx.untrack(p)
	delete(idx.pos, util.HashKey(idx.values[p]))

	if p != last {
		idx.untrack(last)
		idx.values[p] = idx.values[last]
		idx.buckets[p] = idx.buckets[last]
		idx.pos[util.HashKey(idx.values[p])] = p
		idx.track(p)
	}
	idx.values[last] = nil
	idx.buckets[last] = nil
	idx.values = idx.values[:last]
	idx.buckets = idx.buckets[:last]
}

func (idx *Index) track(p int) {
	if idx.tree == nil {
		return
	}
	if key, ok := treeKey(idx.values[p]); ok {
		idx.tree.ReplaceOrInsert(item{key: key, pos: p})
	}
}

func (idx *Index) untrack(p int) {
	if idx.tree == nil {
		return
	}
	if key, ok := treeKey(idx.values[p]); ok {
		idx.tree.Delete(item{key: key, pos: p})
	}
}

// Reset removes every value and emits reset
func (idx *Index) Reset() {
	idx.values = nil
	idx.buckets = nil
	idx.pos = make(map[interface{}]int)
	idx.ids = 0
	if idx.tree != nil {
		idx.tree.Clear(false)
	}
	idx.emitReset()
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// Get returns the identifiers indexed under value in insertion order
func (idx *Index) Get(value interface{}) []interface{} {
	p, ok := idx.pos[util.HashKey(value)]
	if !ok {
		return nil
	}
	return idx.buckets[p].list()
}

// Has reports whether any identifier is indexed under value
func (idx *Index) Has(value interface{}) bool {
	_, ok := idx.pos[util.HashKey(value)]
	return ok
}

// Contains reports whether id is indexed under value
func (idx *Index) Contains(id, value interface{}) bool {
	p, ok := idx.pos[util.HashKey(value)]
	if !ok {
		return false
	}
	_, ok = idx.buckets[p].ids[util.HashKey(id)]
	return ok
}

// Values returns the unique indexed values. B-tree indexes return the ordered values
// in key order followed by the values without an order key.
func (idx *Index) Values() []interface{} {
	if idx.tree == nil {
		return append([]interface{}(nil), idx.values...)
	}
	out := make([]interface{}, 0, len(idx.values))
	idx.Ascend(func(value interface{}, _ []interface{}) bool {
		out = append(out, value)
		return true
	})
	for _, v := range idx.values {
		if _, ok := treeKey(v); !ok {
			out = append(out, v)
		}
	}
	return out
}

// Range returns the identifiers of all values with lo <= value <= hi in key order.
// A nil bound is open. Range requires a B-tree index and returns nil otherwise.
func (idx *Index) Range(lo, hi interface{}) []interface{} {
	if idx.tree == nil {
		plog.Warningf("index %s: range query on a hash index", idx.cfg.Field)
		return nil
	}
	from, to := math.Inf(-1), math.Inf(1)
	if lo != nil {
		k, ok := treeKey(lo)
		if !ok {
			return nil
		}
		from = k
	}
	if hi != nil {
		k, ok := treeKey(hi)
		if !ok {
			return nil
		}
		to = k
	}

	var out []interface{}
	idx.tree.AscendGreaterOrEqual(item{key: from, pos: math.MinInt}, func(it item) bool {
		if it.key > to {
			return false
		}
		out = append(out, idx.buckets[it.pos].list()...)
		return true
	})
	return out
}

// Ascend calls fn for every ordered value in key order until fn returns false.
// Values without an order key are skipped. Ascend requires a B-tree index.
func (idx *Index) Ascend(fn func(value interface{}, ids []interface{}) bool) {
	if idx.tree == nil {
		return
	}
	idx.tree.Ascend(func(it item) bool {
		return fn(idx.values[it.pos], idx.buckets[it.pos].list())
	})
}

// Info describes the state of an index
type Info struct {
	Field   string
	BTree   bool
	Values  int
	IDs     int
	Buckets util.BucketDistribution
}

// Info returns the size and the bucket distribution of the index
func (idx *Index) Info() Info {
	sizes := make([]int, len(idx.buckets))
	for i, b := range idx.buckets {
		sizes[i] = len(b.ids)
	}
	return Info{
		Field:   idx.cfg.Field,
		BTree:   idx.tree != nil,
		Values:  len(idx.values),
		IDs:     idx.ids,
		Buckets: util.BucketStats(sizes),
	}
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

func (idx *Index) emit(t event.Type, id, old, new interface{}) {
	if idx.suppress || idx.cfg.Observer == nil {
		return
	}
	idx.cfg.Observer.Notify(event.Event{
		Type:   t,
		Source: idx.cfg.Field,
		Target: id,
		Delta:  event.FieldDelta{Field: idx.cfg.Field, Old: old, New: new},
	})
}

func (idx *Index) emitReset() {
	if idx.cfg.Observer == nil {
		return
	}
	idx.cfg.Observer.Notify(event.Event{Type: event.IndexReset, Source: idx.cfg.Field, Target: idx})
}
