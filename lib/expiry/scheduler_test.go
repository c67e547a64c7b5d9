package expiry

import (
	"sync"
	"testing"
	"time"
)

func TestScheduleRunsInDeadlineOrder(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var mu sync.Mutex
	var order []uint64
	done := make(chan struct{})
	now := time.Now()
	for _, k := range []uint64{3, 1, 2} {
		key := k
		s.Schedule(key, now.Add(time.Duration(key)*10*time.Millisecond), func() {
			mu.Lock()
			order = append(order, key)
			if len(order) == 3 {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Tasks did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, k := range []uint64{1, 2, 3} {
		if order[i] != k {
			t.Errorf("Expected order [1 2 3], got %v", order)
			break
		}
	}
	if s.Len() != 0 || s.Fired() != 3 {
		t.Errorf("Scheduler should be empty after running everything (len %d, fired %d)", s.Len(), s.Fired())
	}
}

func TestRescheduleReplacesDeadline(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	runs := make(chan string, 2)
	s.Schedule(1, time.Now().Add(20*time.Millisecond), func() { runs <- "first" })
	s.Schedule(1, time.Now().Add(40*time.Millisecond), func() { runs <- "second" })

	select {
	case got := <-runs:
		if got != "second" {
			t.Errorf("Expected the replacing task, got %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Task did not run")
	}
	select {
	case got := <-runs:
		t.Errorf("Unexpected second run %s", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	ran := make(chan struct{}, 1)
	s.Schedule(7, time.Now().Add(20*time.Millisecond), func() { ran <- struct{}{} })
	if !s.Pending(7) {
		t.Fatal("Key should be pending")
	}
	if !s.Cancel(7) {
		t.Fatal("Cancel should find the key")
	}
	if s.Cancel(7) {
		t.Error("Second cancel should return false")
	}

	select {
	case <-ran:
		t.Error("Cancelled task ran")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTaskCanReschedule(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.Schedule(1, time.Now(), func() {
		s.Schedule(2, time.Now(), func() { close(done) })
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Task scheduled from a task did not run")
	}
}

func TestStop(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	s.Stop()
	s.Schedule(1, time.Now(), func() { t.Error("Stopped scheduler ran a task") })
	time.Sleep(20 * time.Millisecond)
}
