package pq

import (
	"container/heap"
	"testing"
)

func TestPriorityQueue(t *testing.T) {
	items := map[string]uint64{
		"banana": 3, "apple": 2, "pear": 4,
	}

	q := New[string]()
	for value, priority := range items {
		q.Push(&Item[string]{
			Value:    value,
			Priority: priority,
		})
	}
	heap.Init(q)

	item := &Item[string]{
		Value:    "orange",
		Priority: 1,
	}
	heap.Push(q, item)
	q.Update("orange", 5)

	expected := []string{"apple", "banana", "pear", "orange"}
	l := q.Len()
	for q.Len() > 0 {
		e := expected[l-q.Len()]
		item := heap.Pop(q).(*Item[string])
		if e != item.Value {
			t.Errorf("expected %s, got %s", e, item.Value)
		}
	}
}

func TestRemovePeek(t *testing.T) {
	q := New[uint64]()
	for id, deadline := range map[uint64]uint64{1: 30, 2: 10, 3: 20, 4: 40} {
		q.Add(id, deadline)
	}
	if !q.Remove(2) {
		t.Fatal("expected 2 to be queued")
	}
	if q.Remove(2) {
		t.Fatal("2 removed twice")
	}
	q.Add(4, 5)

	expected := []uint64{4, 3, 1}
	for _, e := range expected {
		top, ok := q.Peek()
		if !ok {
			t.Fatal("queue drained early")
		}
		if top.Value != e {
			t.Errorf("expected %d, got %d", e, top.Value)
		}
		heap.Pop(q)
	}
	if _, ok := q.Peek(); ok {
		t.Error("expected empty queue")
	}
	if q.Contains(1) {
		t.Error("popped item still indexed")
	}
}

func TestEqualPriorityKeepsInsertionOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 50; i++ {
		q.Add(i, 7)
	}
	for i := 0; i < 50; i++ {
		item := heap.Pop(q).(*Item[int])
		if item.Value != i {
			t.Fatalf("expected %d, got %d", i, item.Value)
		}
	}
}
