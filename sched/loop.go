// Package sched runs callbacks one at a time on a single goroutine. A face
// and a scheduler share one Loop, so their callbacks never run concurrently.
package sched

import (
	"context"
	"sync"

	"github.com/ef-ds/deque"
	"go.uber.org/atomic"
)

// Loop is a FIFO run queue. Run returns once no work is outstanding.
type Loop struct {
	mu    sync.Mutex
	queue *deque.Deque
	err   error

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	work *atomic.Int64
}

func NewLoop() *Loop {
	return &Loop{
		queue: deque.New(),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		work:  atomic.NewInt64(0),
	}
}

// Post queues fn to run on the loop. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue.PushBack(fn)
	l.mu.Unlock()
	l.notify()
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AddWork keeps Run alive until a matching DoneWork.
func (l *Loop) AddWork() {
	l.work.Inc()
}

func (l *Loop) DoneWork() {
	if l.work.Dec() <= 0 {
		l.notify()
	}
}

// Work returns the outstanding work count.
func (l *Loop) Work() int64 {
	return l.work.Load()
}

// Stop makes Run return after the callback in progress.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Fail stops the loop and makes Run return err. Only the first error is kept.
func (l *Loop) Fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.Stop()
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.queue.PopFront()
	if !ok {
		return nil, false
	}
	return v.(func()), true
}

func (l *Loop) stopped() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Run executes queued callbacks in order until there is no outstanding work
// and nothing queued, Stop or Fail is called, or ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-l.stop:
			return l.stopped()
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if fn, ok := l.pop(); ok {
			fn()
			continue
		}
		if l.work.Load() <= 0 {
			return nil
		}

		select {
		case <-l.wake:
		case <-l.stop:
			return l.stopped()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
