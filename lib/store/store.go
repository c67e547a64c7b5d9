package store

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/expiry"
	"github.com/ValentinKolb/recstore/lib/index"
	"github.com/ValentinKolb/recstore/lib/model"
	"github.com/ValentinKolb/recstore/lib/util"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
	"time"
)

var plog = logger.GetLogger("store")

// scheduler keys are unique across stores, so stores can share a scheduler
var keySeq atomic.Uint64

// Pos is a position in the active view of a store
type Pos int

// entry is the bookkeeping of one record in the backing list
type entry struct {
	rec     *model.Record
	id      interface{} // identifier as assigned
	key     uint64      // scheduler key
	pos     int         // position in the backing list
	vpos    int         // position in the active view (valid while the view is cached)
	deleted bool
	active  bool
}

// Store manages the records of one schema
type Store struct {
	cfg    Config
	schema *model.Schema

	mu      sync.Mutex
	list    []*entry
	byID    map[interface{}]*entry // normalized id -> entry
	byRec   map[*model.Record]*entry
	active  int
	view    []*entry // cached active view (nil = invalid)
	filters []*filter
	indexes map[string]*index.Index
	changes *changelog
	snaps   []Snapshot

	// event queue
	outbox      []event.Event
	dispatching bool

	// expiration
	keys      *xsync.MapOf[*model.Record, uint64]
	schedOnce sync.Once
	sched     atomic.Pointer[expiry.Scheduler]
	ownSched  bool
	closed    atomic.Bool
	parent    atomic.Pointer[Store] // nested stores run their expirations on the parent's scheduler

	metrics *storeMetrics
}

// New creates an empty store. A missing schema returns an error with code
// common.ErrCConfiguration.
func New(cfg Config) (*Store, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	s := &Store{
		cfg:     cfg,
		schema:  cfg.Schema,
		byID:    make(map[interface{}]*entry),
		byRec:   make(map[*model.Record]*entry),
		indexes: make(map[string]*index.Index),
		changes: newChangelog(),
		keys:    xsync.NewMapOf[*model.Record, uint64](),
		metrics: newStoreMetrics(cfg.Name),
	}

	// collection relationships of this schema become stores
	cfg.Schema.SetCollectionFactory(s.collectionFactory, false)

	for _, ic := range cfg.Indexes {
		if err := s.CreateIndex(ic.Field, ic.BTree); err != nil {
			return nil, err
		}
	}
	plog.Debugf("created store %s (schema %s, soft delete %v)", cfg.Name, cfg.Schema.Name(), cfg.SoftDelete)
	return s, nil
}

// collectionFactory creates nested stores for collection relationships
func (s *Store) collectionFactory(schema *model.Schema) (model.Collection, error) {
	c, err := New(Config{
		Name:       s.cfg.Name + "." + schema.Name(),
		Schema:     schema,
		SoftDelete: s.cfg.SoftDelete,
		Codec:      s.cfg.Codec,
		Scheduler:  s.cfg.Scheduler,
	})
	if err != nil {
		return nil, err
	}
	c.parent.Store(s)
	return c, nil
}

func (s *Store) Name() string          { return s.cfg.Name }
func (s *Store) Schema() *model.Schema { return s.schema }
func (s *Store) SoftDelete() bool      { return s.cfg.SoftDelete }
func (s *Store) String() string        { return fmt.Sprintf("Store{%s}", s.cfg.Name) }

// --------------------------------------------------------------------------
// Locking & events
// --------------------------------------------------------------------------

// unlock releases the store lock and delivers the queued events
func (s *Store) unlock() {
	s.mu.Unlock()
	s.flush()
}

// flush delivers queued events. Only one goroutine delivers at a time, events queued
// during delivery (e.g. by observers calling back into the store) are delivered by it too.
func (s *Store) flush() {
	s.mu.Lock()
	if s.dispatching || len(s.outbox) == 0 {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()
		for _, ev := range batch {
			s.cfg.Observer.Notify(ev)
		}
		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
}

// emit queues an event of the store. s.mu must be held.
func (s *Store) emit(t event.Type, target, delta interface{}) {
	s.enqueue(event.Event{Type: t, Source: s.cfg.Name, Target: target, Delta: delta})
}

// enqueue queues an event. s.mu must be held.
func (s *Store) enqueue(ev event.Event) {
	if s.cfg.Observer == nil {
		return
	}
	s.outbox = append(s.outbox, ev)
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

// resolve finds the entry of a reference: a *model.Record, a Pos in the active view or
// an identifier. s.mu must be held.
func (s *Store) resolve(ref interface{}) *entry {
	switch v := ref.(type) {
	case nil:
		return nil
	case *model.Record:
		return s.byRec[v]
	case Pos:
		view := s.activeView()
		if int(v) < 0 || int(v) >= len(view) {
			return nil
		}
		return view[v]
	default:
		return s.byID[util.HashKey(v)]
	}
}

// Get returns the record with the given identifier (soft-deleted records included)
func (s *Store) Get(id interface{}) *model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.byID[util.HashKey(id)]; e != nil {
		return e.rec
	}
	return nil
}

// Has reports whether a record with the given identifier is in the backing list
func (s *Store) Has(id interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[util.HashKey(id)]
	return ok
}

// IsDeleted reports whether r is a soft-deleted record of the store
func (s *Store) IsDeleted(r *model.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byRec[r]
	return e != nil && e.deleted
}

// Size returns the number of records in the active view
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Length returns the number of records in the backing list (soft-deleted records included)
func (s *Store) Length() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// --------------------------------------------------------------------------
// CRUD
// --------------------------------------------------------------------------

// materialize creates records from data. Either all records are created or none.
func (s *Store) materialize(data []map[string]interface{}) ([]*model.Record, error) {
	recs := make([]*model.Record, 0, len(data))
	var result *multierror.Error
	for i, d := range data {
		r, err := s.schema.New(d)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		recs = append(recs, r)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, common.Wrap(common.ErrCValidation, "", fmt.Sprintf("cannot add records to %s", s.cfg.Name), err)
	}
	return recs, nil
}

// Add creates records from data and appends them. Either all records are added or none.
// One record.create event is emitted per record.
func (s *Store) Add(data ...map[string]interface{}) ([]*model.Record, error) {
	recs, err := s.materialize(data)
	if err != nil {
		return nil, err
	}
	if err := s.insert(-1, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// AddRecords appends existing records of the store's schema that do not belong to
// another store.
func (s *Store) AddRecords(recs ...*model.Record) error {
	return s.insert(-1, recs)
}

// InsertBefore creates records from data and inserts them in front of anchor
// (a record, an identifier or a Pos). An invalid anchor appends the records.
func (s *Store) InsertBefore(anchor interface{}, data ...map[string]interface{}) ([]*model.Record, error) {
	return s.insertAt(anchor, 0, data)
}

// InsertAfter creates records from data and inserts them after anchor
// (a record, an identifier or a Pos). An invalid anchor appends the records.
func (s *Store) InsertAfter(anchor interface{}, data ...map[string]interface{}) ([]*model.Record, error) {
	return s.insertAt(anchor, 1, data)
}

func (s *Store) insertAt(anchor interface{}, offset int, data []map[string]interface{}) ([]*model.Record, error) {
	recs, err := s.materialize(data)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	at := -1
	if e := s.resolve(anchor); e != nil {
		at = e.pos + offset
	} else {
		plog.Debugf("%s: anchor %v not found, appending", s.cfg.Name, anchor)
	}
	s.mu.Unlock()

	if err := s.insert(at, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// insert adds recs to the backing list at position at (-1 = append)
func (s *Store) insert(at int, recs []*model.Record) error {
	s.mu.Lock()
	defer s.unlock()

	if err := s.admit(recs); err != nil {
		return err
	}
	entries := make([]*entry, len(recs))
	for i, r := range recs {
		entries[i] = s.register(r)
	}
	s.place(at, entries)
	for _, e := range entries {
		s.activate(e)
		s.changes.created(e.rec)
		s.emit(event.RecordCreate, e.rec, nil)
		s.armTTL(e.rec)
	}
	s.metrics.added.Add(len(entries))
	return nil
}

// admit checks that recs can be added: matching schema, no owner and unique identifiers.
// Missing identifiers are generated. s.mu must be held.
func (s *Store) admit(recs []*model.Record) error {
	batch := make(map[interface{}]struct{}, len(recs))
	var result *multierror.Error
	for _, r := range recs {
		if r.Schema() != s.schema {
			result = multierror.Append(result, fmt.Errorf("%s has schema %s, expected %s", r, r.Schema().Name(), s.schema.Name()))
			continue
		}
		if o := r.Owner(); o != nil {
			result = multierror.Append(result, fmt.Errorf("%s already belongs to a store", r))
			continue
		}
		id := r.AssignID()
		if id == nil {
			result = multierror.Append(result, fmt.Errorf("%s has no identifier", r))
			continue
		}
		k := util.HashKey(id)
		_, dupBatch := batch[k]
		if _, dup := s.byID[k]; dup || dupBatch {
			result = multierror.Append(result, fmt.Errorf("duplicate identifier %v", id))
			continue
		}
		batch[k] = struct{}{}
	}
	if err := result.ErrorOrNil(); err != nil {
		return common.Wrap(common.ErrCValidation, "", fmt.Sprintf("cannot add records to %s", s.cfg.Name), err)
	}
	return nil
}

// register creates the entry of r and takes ownership. s.mu must be held.
func (s *Store) register(r *model.Record) *entry {
	id := r.ID()
	e := &entry{rec: r, id: id, key: keySeq.Add(1)}
	s.byID[util.HashKey(id)] = e
	s.byRec[r] = e
	s.keys.Store(r, e.key)
	r.SetOwner(s)
	s.adopt(r)
	return e
}

// place inserts entries into the backing list at position at (-1 = append). s.mu must be held.
func (s *Store) place(at int, entries []*entry) {
	if at < 0 || at >= len(s.list) {
		at = len(s.list)
		s.list = append(s.list, entries...)
	} else {
		tail := append([]*entry(nil), s.list[at:]...)
		s.list = append(append(s.list[:at], entries...), tail...)
	}
	s.renumber(at)
}

// renumber updates the backing positions from position from on. s.mu must be held.
func (s *Store) renumber(from int) {
	for i := from; i < len(s.list); i++ {
		s.list[i].pos = i
	}
	s.view = nil
}

// activate indexes a (restored or new) entry and evaluates the filters. s.mu must be held.
func (s *Store) activate(e *entry) {
	e.deleted = false
	for name, idx := range s.indexes {
		idx.Add(e.rec.Get(name), e.id)
	}
	e.active = s.passes(e.rec)
	if e.active {
		s.active++
	}
	s.view = nil
}

// deactivate removes an entry from the indexes and the active view. s.mu must be held.
func (s *Store) deactivate(e *entry, deleted bool) {
	if !e.deleted {
		for name, idx := range s.indexes {
			idx.Remove(e.id, e.rec.Get(name))
		}
	}
	if e.active {
		s.active--
	}
	e.active = false
	e.deleted = deleted
	s.view = nil
}

// purge removes an entry from the backing list and releases the record. s.mu must be held.
func (s *Store) purge(e *entry) {
	copy(s.list[e.pos:], s.list[e.pos+1:])
	s.list[len(s.list)-1] = nil
	s.list = s.list[:len(s.list)-1]
	s.renumber(e.pos)
	if e.active {
		s.active--
		e.active = false
	}
	s.release(e)
}

// release drops the bookkeeping of an entry that is no longer in the backing list.
// A pending expiration is cancelled. s.mu must be held.
func (s *Store) release(e *entry) {
	delete(s.byID, util.HashKey(e.id))
	delete(s.byRec, e.rec)
	e.rec.ClearExpiry()
	e.rec.SetOwner(nil)
	s.keys.Delete(e.rec)
}

// armTTL applies the default expiration of the schema. s.mu must be held.
func (s *Store) armTTL(r *model.Record) {
	if ttl := s.schema.TTL(); ttl > 0 {
		if _, ok := r.Deadline(); !ok {
			r.ExpireIn(ttl)
		}
	}
}

// Remove deletes a record (a record, an identifier or a Pos) and cancels its pending
// expiration. With soft delete the record stays in the backing list and can be restored. It returns the removed record, or nil
// (with a warning) if ref does not resolve to a removable record.
func (s *Store) Remove(ref interface{}) *model.Record {
	s.mu.Lock()
	defer s.unlock()

	e := s.resolve(ref)
	if e == nil || e.deleted {
		plog.Warningf("%s: cannot remove %v: no such record", s.cfg.Name, ref)
		return nil
	}
	if s.cfg.SoftDelete {
		s.deactivate(e, true)
		e.rec.ClearExpiry()
	} else {
		s.deactivate(e, false)
		s.purge(e)
	}
	s.changes.deleted(e.rec)
	s.metrics.removed.Inc()
	s.emit(event.RecordDelete, e.rec, nil)
	return e.rec
}

// Restore re-activates a soft-deleted record at its backing position and emits
// record.restored. It returns nil (with a warning) if ref is not a soft-deleted record,
// which includes records already purged by Compact.
func (s *Store) Restore(ref interface{}) *model.Record {
	s.mu.Lock()
	defer s.unlock()

	e := s.resolve(ref)
	if e == nil || !e.deleted {
		plog.Warningf("%s: cannot restore %v: not a soft-deleted record", s.cfg.Name, ref)
		return nil
	}
	s.activate(e)
	s.changes.restored(e.rec)
	s.metrics.restored.Inc()
	s.emit(event.RecordRestored, e.rec, nil)
	return e.rec
}

// --------------------------------------------------------------------------
// model.Owner
// --------------------------------------------------------------------------

// FieldChanged keeps indexes, filters and changelog in sync with field updates and
// forwards the field event to the observer.
func (s *Store) FieldChanged(r *model.Record, ev event.Event) {
	s.mu.Lock()
	defer s.unlock()

	e := s.byRec[r]
	if e == nil {
		return
	}
	if ev.Type == event.FieldUpdate && !e.deleted {
		if d, ok := ev.Delta.(event.FieldDelta); ok {
			if idx := s.indexes[d.Field]; idx != nil {
				idx.Update(e.id, d.Old, d.New)
			}
		}
		if active := s.passes(r); active != e.active {
			e.active = active
			if active {
				s.active++
			} else {
				s.active--
			}
			s.view = nil
		}
		s.changes.updated(r)
		s.metrics.updates.Inc()
	}
	s.enqueue(ev)
}

// RecordExpired purges an expired record and emits record.expired
func (s *Store) RecordExpired(r *model.Record) {
	s.mu.Lock()
	defer s.unlock()

	e := s.byRec[r]
	if e == nil {
		return
	}
	// field values may be written concurrently, so indexes are purged by identifier
	if !e.deleted {
		for _, idx := range s.indexes {
			idx.Purge(e.id)
		}
		s.changes.deleted(r)
	}
	e.deleted = true
	s.purge(e)
	s.metrics.expired.Inc()
	s.emit(event.RecordExpired, r, nil)
}

// Step returns the record n positions away from r in the active view (negative n steps
// backwards). With cycle the position wraps around: (p + n) mod size.
func (s *Store) Step(r *model.Record, n int, cycle bool) *model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.byRec[r]
	if e == nil || !e.active {
		return nil
	}
	view := s.activeView()
	size := len(view)
	t := e.vpos + n
	if cycle {
		t = ((t % size) + size) % size
	} else if t < 0 || t >= size {
		return nil
	}
	return view[t].rec
}

// --------------------------------------------------------------------------
// model.Expirer
// --------------------------------------------------------------------------

func (s *Store) scheduler() *expiry.Scheduler {
	if p := s.parent.Load(); p != nil {
		return p.scheduler()
	}
	s.schedOnce.Do(func() {
		sched := s.cfg.Scheduler
		if sched == nil {
			sched = expiry.NewScheduler()
			s.ownSched = true
		}
		s.sched.Store(sched)
	})
	return s.sched.Load()
}

// running returns the scheduler in use without starting one
func (s *Store) running() *expiry.Scheduler {
	if p := s.parent.Load(); p != nil {
		return p.running()
	}
	return s.sched.Load()
}

// isClosed reports whether the store or one of its parents is closed
func (s *Store) isClosed() bool {
	for p := s; p != nil; p = p.parent.Load() {
		if p.closed.Load() {
			return true
		}
	}
	return false
}

// adopt makes s the parent of the nested stores of r
func (s *Store) adopt(r *model.Record) {
	for _, rel := range r.Schema().Relations() {
		switch v := r.Get(rel.Field).(type) {
		case *Store:
			v.setParent(s)
		case *model.Record:
			s.adopt(v)
		}
	}
}

// setParent moves the pending expirations of s to the scheduler of p and stops the
// scheduler s started on its own
func (s *Store) setParent(p *Store) {
	if s == p || s.parent.Load() == p {
		return
	}
	old := s.running()
	owned := s.parent.Load() == nil && s.ownSched
	s.parent.Store(p)
	if old == nil {
		return
	}
	if sched := s.scheduler(); sched != old {
		s.keys.Range(func(r *model.Record, key uint64) bool {
			if !old.Cancel(key) {
				return true
			}
			if deadline, ok := r.Deadline(); ok {
				sched.Schedule(key, deadline, func() { r.CheckExpiry() })
			}
			return true
		})
	}
	if owned {
		old.Stop()
	}
}

// Schedule arms the expiration of an owned record
func (s *Store) Schedule(r *model.Record, deadline time.Time) {
	key, ok := s.keys.Load(r)
	if !ok || s.isClosed() {
		return
	}
	s.scheduler().Schedule(key, deadline, func() { r.CheckExpiry() })
}

// Cancel removes the pending expiration of an owned record
func (s *Store) Cancel(r *model.Record) {
	key, ok := s.keys.Load(r)
	if !ok {
		return
	}
	if sched := s.running(); sched != nil {
		sched.Cancel(key)
	}
}

// Close stops the expiration scheduler owned by the store. Pending expirations are
// dropped. Nested stores share the scheduler of their parent and stop expiring with
// it. The store remains usable.
func (s *Store) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.schedOnce.Do(func() {})
	if sched := s.sched.Load(); sched != nil && s.ownSched {
		sched.Stop()
	}
}
