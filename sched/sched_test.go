package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop()
	l.AddWork()

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() {
			got = append(got, i)
			if i == 9 {
				l.DoneWork()
			}
		})
	}
	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoopWithoutWork(t *testing.T) {
	l := NewLoop()
	ran := false
	l.Post(func() { ran = true })
	require.NoError(t, l.Run(context.Background()))
	assert.True(t, ran)
}

func TestLoopPostFromGoroutine(t *testing.T) {
	l := NewLoop()
	l.AddWork()
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Post(l.DoneWork)
	}()
	require.NoError(t, l.Run(context.Background()))
	assert.EqualValues(t, 0, l.Work())
}

func TestLoopFail(t *testing.T) {
	errBoom := errors.New("boom")
	l := NewLoop()
	l.AddWork()
	go func() {
		l.Fail(errBoom)
		l.Fail(errors.New("second"))
	}()
	assert.ErrorIs(t, l.Run(context.Background()), errBoom)
}

func TestLoopStop(t *testing.T) {
	l := NewLoop()
	l.AddWork()
	l.Post(l.Stop)
	l.Post(func() { t.Error("ran after stop") })
	assert.NoError(t, l.Run(context.Background()))
}

func TestLoopContext(t *testing.T) {
	l := NewLoop()
	l.AddWork()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Run(ctx), context.DeadlineExceeded)
}

func TestSchedulerOrder(t *testing.T) {
	l := NewLoop()
	s := NewScheduler(l)

	var got []string
	record := func(name string) func() {
		return func() { got = append(got, name) }
	}
	start := time.Now()
	s.Schedule(30*time.Millisecond, record("b"))
	s.Schedule(10*time.Millisecond, record("a"))
	x := s.Schedule(20*time.Millisecond, record("x"))
	s.Schedule(0, record("first"))
	s.Schedule(0, record("second"))
	assert.Equal(t, 5, s.Len())
	assert.True(t, s.Cancel(x))
	assert.False(t, s.Cancel(x))

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []string{"first", "second", "a", "b"}, got)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 0, s.Len())
}

func TestSchedulerChained(t *testing.T) {
	l := NewLoop()
	s := NewScheduler(l)

	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			s.Schedule(5*time.Millisecond, tick)
		}
	}
	id := s.Schedule(5*time.Millisecond, tick)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 3, count)
	assert.False(t, s.Cancel(id))
}

func TestSchedulerCancelAll(t *testing.T) {
	l := NewLoop()
	s := NewScheduler(l)
	for i := 0; i < 3; i++ {
		s.Schedule(time.Hour, func() { t.Error("fired") })
	}
	assert.EqualValues(t, 3, l.Work())
	s.CancelAll()
	assert.EqualValues(t, 0, l.Work())
	require.NoError(t, l.Run(context.Background()))
}
