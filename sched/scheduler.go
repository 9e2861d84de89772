package sched

import (
	"container/heap"
	"sync"
	"time"

	"github.com/go-ndn/consumer/pq"
)

type EventID uint64

// Scheduler fires callbacks on a Loop after a delay. Each pending event
// counts as outstanding work on the loop.
type Scheduler struct {
	loop  *Loop
	start time.Time

	mu    sync.Mutex
	seq   EventID
	queue *pq.PriorityQueue[EventID]
	fns   map[EventID]func()
	timer *time.Timer
}

func NewScheduler(loop *Loop) *Scheduler {
	return &Scheduler{
		loop:  loop,
		start: time.Now(),
		queue: pq.New[EventID](),
		fns:   make(map[EventID]func()),
	}
}

func (s *Scheduler) elapsed() time.Duration {
	return time.Since(s.start)
}

// Schedule runs fn on the loop once delay has passed. Events with the same
// deadline fire in the order they were scheduled.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) EventID {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	s.queue.Add(id, uint64(s.elapsed()+delay))
	s.fns[id] = fn
	s.loop.AddWork()
	s.rearm()
	return id
}

// Cancel removes a pending event. It reports false when the event already
// fired or was cancelled.
func (s *Scheduler) Cancel(id EventID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.queue.Remove(id) {
		return false
	}
	delete(s.fns, id)
	s.loop.DoneWork()
	s.rearm()
	return true
}

// CancelAll drops every pending event.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.queue.Len() > 0 {
		item := heap.Pop(s.queue).(*pq.Item[EventID])
		delete(s.fns, item.Value)
		s.loop.DoneWork()
	}
	s.rearm()
}

// Len returns the number of pending events.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// rearm points the timer at the earliest deadline. s.mu must be held.
func (s *Scheduler) rearm() {
	top, ok := s.queue.Peek()
	if !ok {
		if s.timer != nil {
			s.timer.Stop()
		}
		return
	}
	d := time.Duration(top.Priority) - s.elapsed()
	if s.timer == nil {
		s.timer = time.AfterFunc(d, s.expire)
		return
	}
	s.timer.Reset(d)
}

func (s *Scheduler) expire() {
	s.loop.Post(s.fire)
}

// fire runs every due event. It executes on the loop.
func (s *Scheduler) fire() {
	for {
		s.mu.Lock()
		top, ok := s.queue.Peek()
		if !ok || time.Duration(top.Priority) > s.elapsed() {
			s.rearm()
			s.mu.Unlock()
			return
		}
		heap.Pop(s.queue)
		fn := s.fns[top.Value]
		delete(s.fns, top.Value)
		s.mu.Unlock()

		fn()
		s.loop.DoneWork()
	}
}
