// Package util
//
// This file provides a priority queue keyed by a comparable type.
//
// This implementation combines a binary heap with a hash map to provide both
// efficient priority-based operations and key-based access. It is used for
// expiration deadlines: the earliest deadline is always on top, and deadlines can
// be moved or cancelled by key when a record is reset or removed.
//
//   - O(log n) for priority operations (AddItem, RemoveByKey, PopMin)
//   - O(1) for key-based lookups and existence checks
//
// Note: This implementation is not thread-safe.
//
// Example usage:
//
//	deadlines := NewMapHeap[uint64]()
//	deadlines.AddItem(1001, time.Now().Add(time.Second).UnixNano())
//	deadlines.AddItem(1002, time.Now().Add(time.Minute).UnixNano())
//
//	// Move a deadline
//	deadlines.AddItem(1001, time.Now().Add(time.Hour).UnixNano())
//
//	// Cancel a deadline
//	deadlines.RemoveByKey(1002)
//
//	// Process all due items
//	now := time.Now().UnixNano()
//	for item, ok := deadlines.Peek(); ok && item.Priority <= now; item, ok = deadlines.Peek() {
//	    deadlines.PopMin()
//	}
package util

import (
	"container/heap"
	"fmt"
)

// HeapItem is an entry of the MapHeap
type HeapItem[K comparable] struct {
	Key      K     // Unique identifier for the item
	Priority int64 // Priority of the item, lower values are popped first
	index    int   // Index in the heap, maintained by heap package
}

func (i *HeapItem[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap with key-based access
type MapHeap[K comparable] struct {
	items    []*HeapItem[K]     // The actual heap slice
	itemsMap map[K]*HeapItem[K] // Map for O(1) access by key
}

// innerHeap implements heap.Interface without exposing Push/Pop on MapHeap
type innerHeap[K comparable] MapHeap[K]

// NewMapHeap creates a new, empty MapHeap
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*HeapItem[K], 0),
		itemsMap: make(map[K]*HeapItem[K]),
	}
}

func (h *innerHeap[K]) Len() int { return len(h.items) }

func (h *innerHeap[K]) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

func (h *innerHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *innerHeap[K]) Push(x interface{}) {
	item := x.(*HeapItem[K])
	item.index = len(h.items)
	h.items = append(h.items, item)
	h.itemsMap[item.Key] = item
}

func (h *innerHeap[K]) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	h.items = old[:n-1]
	delete(h.itemsMap, item.Key)
	return item
}

func (h *MapHeap[K]) inner() *innerHeap[K] { return (*innerHeap[K])(h) }

// Len returns the number of items in the heap
func (h *MapHeap[K]) Len() int { return len(h.items) }

// AddItem adds a new item or updates the priority of an existing one
func (h *MapHeap[K]) AddItem(key K, priority int64) {
	if item, exists := h.itemsMap[key]; exists {
		item.Priority = priority
		heap.Fix(h.inner(), item.index)
		return
	}
	heap.Push(h.inner(), &HeapItem[K]{Key: key, Priority: priority})
}

// RemoveByKey removes an item by its key and returns its priority
func (h *MapHeap[K]) RemoveByKey(key K) (int64, bool) {
	item, exists := h.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(h.inner(), item.index)
	return item.Priority, true
}

// Peek returns the item with the lowest priority without removing it
func (h *MapHeap[K]) Peek() (HeapItem[K], bool) {
	if len(h.items) == 0 {
		return HeapItem[K]{}, false
	}
	return *h.items[0], true
}

// PopMin removes and returns the item with the lowest priority
func (h *MapHeap[K]) PopMin() (HeapItem[K], bool) {
	if len(h.items) == 0 {
		return HeapItem[K]{}, false
	}
	item := heap.Pop(h.inner()).(*HeapItem[K])
	return *item, true
}

// Contains checks if a key exists in the heap
func (h *MapHeap[K]) Contains(key K) bool {
	_, exists := h.itemsMap[key]
	return exists
}

// GetByKey returns the item with the given key without removing it
func (h *MapHeap[K]) GetByKey(key K) (HeapItem[K], bool) {
	item, exists := h.itemsMap[key]
	if !exists {
		return HeapItem[K]{}, false
	}
	return *item, true
}
