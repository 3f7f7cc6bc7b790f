// Package util
//
// This file provides a priority queue that also supports key-based access.
//
// This implementation combines a binary heap with a hash map to provide both
// efficient priority-based operations and key-based access. It is used by the
// log-ordered visibility tracker to keep the oldest pending log position at the top
// while still removing arbitrary positions when their unit of work finishes.
//
// Key advantages of this implementation:
//
// 1. Time Complexity:
//   - O(log n) for priority operations (Push, Pop, Update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// 2. Ordering Benefits:
//   - Efficiently identifies the lowest-priority item
//   - Supports direct removal when items finish out of order
//   - Can update priorities in place
//
// 3. Concurrency Considerations:
//   - Note: This implementation is not thread-safe by default
//   - For concurrent use, external synchronization should be applied
//
// Example usage:
//
//	// Create a new queue
//	pending := NewMapHeap[int64, int64]()
//
//	// Add items with their priorities
//	pending.AddItem(1001, 1001)
//	pending.AddItem(1002, 1002)
//
//	// Get the lowest item
//	key, priority, exists := pending.Peek()
//
//	// Remove a specific item
//	pending.RemoveByKey(1001)
package util

import (
	"cmp"
	"container/heap"
	"fmt"
)

// item represents an item in the queue
type item[K comparable, P cmp.Ordered] struct {
	Key      K   // Unique identifier for the item
	Priority P   // Priority used for ordering in the heap
	index    int // Index in the heap, maintained by heap package
}

func (i *item[K, P]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %v}", i.Key, i.Priority)
}

// entries is the heap.Interface part of the MapHeap
type entries[K comparable, P cmp.Ordered] struct {
	items    []*item[K, P]     // The actual heap slice
	itemsMap map[K]*item[K, P] // Map for O(1) access by key
}

// Len returns the number of items in the queue (part of heap.Interface)
func (e *entries[K, P]) Len() int { return len(e.items) }

// Less compares items by priority (part of heap.Interface)
func (e *entries[K, P]) Less(i, j int) bool {
	return e.items[i].Priority < e.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (e *entries[K, P]) Swap(i, j int) {
	e.items[i], e.items[j] = e.items[j], e.items[i]
	e.items[i].index = i
	e.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (e *entries[K, P]) Push(x any) {
	it := x.(*item[K, P])
	it.index = len(e.items)
	e.items = append(e.items, it)
	e.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (e *entries[K, P]) Pop() any {
	old := e.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1  // For safety
	e.items = old[:n-1]
	delete(e.itemsMap, it.Key)
	return it
}

// MapHeap is a min-heap of keyed items with O(1) key lookups
type MapHeap[K comparable, P cmp.Ordered] struct {
	e entries[K, P]
}

// NewMapHeap creates a new empty queue
func NewMapHeap[K comparable, P cmp.Ordered]() *MapHeap[K, P] {
	return &MapHeap[K, P]{
		e: entries[K, P]{
			items:    make([]*item[K, P], 0),
			itemsMap: make(map[K]*item[K, P]),
		},
	}
}

// Len returns the number of items in the queue
func (h *MapHeap[K, P]) Len() int { return h.e.Len() }

// AddItem adds a new item to the queue or updates the priority of an existing one
func (h *MapHeap[K, P]) AddItem(key K, priority P) {
	// Check if item already exists
	if it, exists := h.e.itemsMap[key]; exists {
		// Update priority and fix heap
		it.Priority = priority
		heap.Fix(&h.e, it.index)
		return
	}

	heap.Push(&h.e, &item[K, P]{
		Key:      key,
		Priority: priority,
	})
}

// RemoveByKey removes an item by its key and returns its priority
func (h *MapHeap[K, P]) RemoveByKey(key K) (P, bool) {
	it, exists := h.e.itemsMap[key]
	if !exists {
		var zero P
		return zero, false
	}

	heap.Remove(&h.e, it.index)
	return it.Priority, true
}

// Peek returns the item with the lowest priority without removing it
func (h *MapHeap[K, P]) Peek() (K, P, bool) {
	if len(h.e.items) == 0 {
		var (
			zeroK K
			zeroP P
		)
		return zeroK, zeroP, false
	}
	top := h.e.items[0]
	return top.Key, top.Priority, true
}

// PopMin removes and returns the item with the lowest priority
func (h *MapHeap[K, P]) PopMin() (K, P, bool) {
	key, priority, ok := h.Peek()
	if ok {
		heap.Pop(&h.e)
	}
	return key, priority, ok
}

// Contains checks if a key exists in the queue
func (h *MapHeap[K, P]) Contains(key K) bool {
	_, exists := h.e.itemsMap[key]
	return exists
}

// GetByKey returns the priority of an item without removing it
func (h *MapHeap[K, P]) GetByKey(key K) (P, bool) {
	it, exists := h.e.itemsMap[key]
	if !exists {
		var zero P
		return zero, false
	}
	return it.Priority, true
}
