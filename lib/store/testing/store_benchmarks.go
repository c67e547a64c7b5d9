package testing

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/recstore/lib/store"
)

// RunStoreBenchmarks runs all benchmarks against the stores created by factory
func RunStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Add", func(b *testing.B) {
			benchmarkAdd(b, factory)
		})

		b.Run("AddIndexed", func(b *testing.B) {
			benchmarkAddIndexed(b, factory)
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory)
		})

		b.Run("SetIndexed", func(b *testing.B) {
			benchmarkSetIndexed(b, factory)
		})

		b.Run("IndexLookup", func(b *testing.B) {
			benchmarkIndexLookup(b, factory)
		})

		b.Run("RemoveRestore", func(b *testing.B) {
			benchmarkRemoveRestore(b, factory)
		})

		b.Run("Load", func(b *testing.B) {
			benchmarkLoad(b, factory)
		})

		b.Run("AddWithExpiry", func(b *testing.B) {
			benchmarkAddWithExpiry(b, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// fill adds n records with ids 0..n-1 and ages i % 100
func fill(b *testing.B, s *store.Store, n int) {
	data := make([]map[string]interface{}, n)
	for i := range data {
		data[i] = person(i, "Bench", "Mark", i%100)
	}
	if err := s.Load(data); err != nil {
		b.Fatalf("Load failed: %v", err)
	}
}

func benchmarkAdd(b *testing.B, factory StoreFactory) {
	s := newStore(b, factory, nil)
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			if _, err := s.Add(person(i, "Bench", "Mark", int(i%100))); err != nil {
				b.Errorf("Add failed: %v", err)
			}
		}
	})
}

func benchmarkAddIndexed(b *testing.B, factory StoreFactory) {
	s := newStore(b, factory, nil)
	if err := s.CreateIndex("age", true); err != nil {
		b.Fatalf("CreateIndex failed: %v", err)
	}
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			if _, err := s.Add(person(i, "Bench", "Mark", int(i%100))); err != nil {
				b.Errorf("Add failed: %v", err)
			}
		}
	})
}

func benchmarkGet(b *testing.B, factory StoreFactory) {
	s := newStore(b, factory, nil)
	n := 10000
	fill(b, s, n)
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			if s.Get(int(i)%n) == nil {
				b.Errorf("record %d not found", int(i)%n)
			}
		}
	})
}

func benchmarkSetIndexed(b *testing.B, factory StoreFactory) {
	s := newStore(b, factory, nil)
	if err := s.CreateIndex("age", true); err != nil {
		b.Fatalf("CreateIndex failed: %v", err)
	}
	fill(b, s, 1)
	r := s.First()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Set("age", i%100); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}
}

func benchmarkIndexLookup(b *testing.B, factory StoreFactory) {
	s := newStore(b, factory, nil)
	if err := s.CreateIndex("age", true); err != nil {
		b.Fatalf("CreateIndex failed: %v", err)
	}
	fill(b, s, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if len(s.GetIndexRecords("age", i%100)) != 100 {
			b.Fatalf("expected 100 records with age %d", i%100)
		}
	}
}

func benchmarkRemoveRestore(b *testing.B, factory StoreFactory) {
	s := newStore(b, factory, nil)
	fill(b, s, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := s.Remove(i % 1000)
		if s.SoftDelete() {
			s.Restore(r)
		} else if _, err := s.Add(person(i%1000, "Bench", "Mark", 0)); err != nil {
			b.Fatalf("Add failed: %v", err)
		}
	}
}

func benchmarkLoad(b *testing.B, factory StoreFactory) {
	n := 10000
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		s := newStore(b, factory, nil)
		data := make([]map[string]interface{}, n)
		for j := range data {
			data[j] = person(j, fmt.Sprintf("first-%d", j), "Load", j%100)
		}
		b.StartTimer()
		if err := s.Load(data); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
	}
}

func benchmarkAddWithExpiry(b *testing.B, factory StoreFactory) {
	s := newStore(b, factory, nil)
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			recs, err := s.Add(person(i, "Bench", "Mark", 0))
			if err != nil {
				b.Errorf("Add failed: %v", err)
				continue
			}
			recs[0].ExpireIn(time.Duration(i%1000) * time.Millisecond)
		}
	})
}
