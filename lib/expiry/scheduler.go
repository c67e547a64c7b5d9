// Package expiry implements a deadline scheduler.
//
// A Scheduler runs a single goroutine that sleeps until the earliest deadline, then runs
// every task whose deadline has passed. Tasks are identified by a uint64 key, scheduling
// a key again replaces its deadline and task.
package expiry

import (
	"github.com/ValentinKolb/recstore/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
	"time"
)

var plog = logger.GetLogger("expiry")

// idleInterval is the sleep time of the loop when nothing is scheduled
const idleInterval = time.Minute

// Scheduler runs tasks at their deadline.
//
// Thread-safety: all methods can be called concurrently. Tasks run on the scheduler
// goroutine, one at a time, without any scheduler lock held, so a task may call back
// into the scheduler.
type Scheduler struct {
	mu    sync.Mutex                   // guards heap and writes to tasks
	heap  *util.MapHeap[uint64]        // key -> deadline (unix nanos)
	tasks *xsync.MapOf[uint64, func()] // key -> task, read without lock

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	running atomic.Bool
	fired   atomic.Uint64
}

// NewScheduler creates and starts a scheduler. Stop must be called to release its goroutine.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		heap:    util.NewMapHeap[uint64](),
		tasks:   xsync.NewMapOf[uint64, func()](),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	s.running.Store(true)
	go s.loop()
	return s
}

// Schedule runs task at deadline. A previous deadline of the key is replaced.
func (s *Scheduler) Schedule(key uint64, deadline time.Time, task func()) {
	if !s.running.Load() {
		plog.Warningf("schedule on a stopped scheduler (key %d)", key)
		return
	}
	s.mu.Lock()
	s.tasks.Store(key, task)
	s.heap.AddItem(key, deadline.UnixNano())
	s.mu.Unlock()
	s.notify()
}

// Cancel removes the deadline of key. It returns false if the key was not scheduled.
func (s *Scheduler) Cancel(key uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.heap.RemoveByKey(key)
	s.tasks.Delete(key)
	return ok
}

// Pending reports whether key is scheduled
func (s *Scheduler) Pending(key uint64) bool {
	_, ok := s.tasks.Load(key)
	return ok
}

// Len returns the number of scheduled keys
func (s *Scheduler) Len() int {
	return s.tasks.Size()
}

// Fired returns the number of tasks run so far
func (s *Scheduler) Fired() uint64 {
	return s.fired.Load()
}

// Stop terminates the scheduler goroutine. Pending tasks are dropped.
// Stop can be called multiple times.
func (s *Scheduler) Stop() {
	if s.running.CompareAndSwap(true, false) {
		close(s.done)
		<-s.stopped
	}
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop is the main scheduler loop
//
// Thread-safety: This function must only run once per scheduler!
func (s *Scheduler) loop() {
	defer close(s.stopped)

	timer := time.NewTimer(idleInterval)
	defer timer.Stop()

	for {
		// run everything that is due
		for _, task := range s.due(time.Now().UnixNano()) {
			s.run(task)
		}

		// sleep until the next deadline
		wait := idleInterval
		s.mu.Lock()
		if next, ok := s.heap.Peek(); ok {
			wait = time.Duration(next.Priority - time.Now().UnixNano())
		}
		s.mu.Unlock()
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.done:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// due pops every entry with a deadline <= now and returns the tasks in deadline order
func (s *Scheduler) due(now int64) []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []func()
	for {
		item, ok := s.heap.Peek()
		if !ok || item.Priority > now {
			break
		}
		s.heap.PopMin()
		if task, ok := s.tasks.LoadAndDelete(item.Key); ok {
			out = append(out, task)
		}
	}
	return out
}

func (s *Scheduler) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			plog.Errorf("expiry task panicked: %v", r)
		}
	}()
	s.fired.Add(1)
	task()
}
