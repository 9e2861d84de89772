// Package pq implements priority queue
package pq

import (
	"container/heap"
)

type Item[K comparable] struct {
	Value    K      // The value of the item; unique in the queue.
	Priority uint64 // The priority of the item in the queue.
	index    int    // The index of the item in the heap.
	seq      uint64 // Insertion order; breaks priority ties.
}

// PriorityQueue implements heap.Interface. Use the heap package, or the
// Add/Remove/Peek helpers, to keep it ordered.
type PriorityQueue[K comparable] struct {
	m    map[K]*Item[K]
	item []*Item[K]
	seq  uint64
}

func New[K comparable]() *PriorityQueue[K] {
	return &PriorityQueue[K]{
		m: make(map[K]*Item[K]),
	}
}

func (pq *PriorityQueue[K]) Len() int { return len(pq.item) }

func (pq *PriorityQueue[K]) Less(i, j int) bool {
	a, b := pq.item[i], pq.item[j]
	if a.Priority == b.Priority {
		return a.seq < b.seq
	}
	return a.Priority < b.Priority
}

func (pq *PriorityQueue[K]) Swap(i, j int) {
	pq.item[i], pq.item[j] = pq.item[j], pq.item[i]
	pq.item[i].index, pq.item[j].index = i, j
}

func (pq *PriorityQueue[K]) Push(x interface{}) {
	item := x.(*Item[K])
	if _, ok := pq.m[item.Value]; ok {
		return
	}
	item.index = pq.Len()
	pq.seq++
	item.seq = pq.seq
	pq.m[item.Value] = item
	pq.item = append(pq.item, item)
}

func (pq *PriorityQueue[K]) Pop() interface{} {
	n := pq.Len()
	item := pq.item[n-1]
	pq.item[n-1] = nil
	delete(pq.m, item.Value)
	item.index = -1
	pq.item = pq.item[:n-1]
	return item
}

func (pq *PriorityQueue[K]) Update(x K, priority uint64) {
	item, ok := pq.m[x]
	if !ok {
		return
	}
	item.Priority = priority
	heap.Fix(pq, item.index)
}

// Add inserts x, or reprioritizes it when already queued.
func (pq *PriorityQueue[K]) Add(x K, priority uint64) {
	if _, ok := pq.m[x]; ok {
		pq.Update(x, priority)
		return
	}
	heap.Push(pq, &Item[K]{Value: x, Priority: priority})
}

// Remove deletes x and reports whether it was queued.
func (pq *PriorityQueue[K]) Remove(x K) bool {
	item, ok := pq.m[x]
	if !ok {
		return false
	}
	heap.Remove(pq, item.index)
	return true
}

// Peek returns the item with the lowest priority without removing it.
func (pq *PriorityQueue[K]) Peek() (*Item[K], bool) {
	if pq.Len() == 0 {
		return nil, false
	}
	return pq.item[0], true
}

func (pq *PriorityQueue[K]) Contains(x K) bool {
	_, ok := pq.m[x]
	return ok
}
