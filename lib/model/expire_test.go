package model

import (
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/ValentinKolb/recstore/lib/field"
)

func expiringRecord(t *testing.T) (*Record, *event.Recorder) {
	t.Helper()
	rec := &event.Recorder{}
	s, err := NewSchema(SchemaConfig{Name: "session", Fields: []field.Config{{Name: "user"}}, Observer: rec})
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.New(map[string]interface{}{"id": 1, "user": "john"})
	if err != nil {
		t.Fatal(err)
	}
	return r, rec
}

func TestExpireFiresOnce(t *testing.T) {
	r, rec := expiringRecord(t)
	r.ExpireIn(20 * time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	if !r.Expired() {
		t.Fatal("Record should have expired")
	}
	if n := rec.Count(event.RecordExpired); n != 1 {
		t.Errorf("Expected exactly one record.expired, got %d", n)
	}
	if r.CheckExpiry() {
		t.Error("An expired record must not fire again")
	}
}

func TestExpireResetCancelsPending(t *testing.T) {
	r, rec := expiringRecord(t)
	r.ExpireIn(30 * time.Millisecond)
	r.ExpireIn(time.Hour)

	time.Sleep(80 * time.Millisecond)
	if r.Expired() || rec.Count(event.RecordExpired) != 0 {
		t.Error("Resetting the deadline should cancel the pending expiration")
	}

	r.ClearExpiry()
	if _, ok := r.Deadline(); ok {
		t.Error("ClearExpiry should remove the deadline")
	}
}

func TestCheckExpiryConcurrent(t *testing.T) {
	r, rec := expiringRecord(t)
	r.ExpireAt(time.Now().Add(-time.Second))
	time.Sleep(20 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckExpiry()
		}()
	}
	wg.Wait()

	if n := rec.Count(event.RecordExpired); n != 1 {
		t.Errorf("Expected exactly one record.expired, got %d", n)
	}
}
