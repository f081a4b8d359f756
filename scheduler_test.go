package fiberio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScheduler_MinimalFiber mirrors spec scenario S1: a single-worker,
// use-caller scheduler running one callable to completion.
func TestScheduler_MinimalFiber(t *testing.T) {
	sched := NewScheduler(WithWorkers(1), WithUseCaller(true), WithName("s1"))
	require.NoError(t, sched.Start())

	var mu sync.Mutex
	var buf string
	require.NoError(t, sched.Schedule(NewTask(func() {
		mu.Lock()
		buf += "A"
		mu.Unlock()
	})))

	require.NoError(t, sched.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "A", buf)
}

// TestScheduler_ThreeWayYield mirrors spec scenario S2: two fibers
// interleaved by a single-worker dispatch loop, where each bare Yield
// re-enqueues to the tail of the FIFO.
func TestScheduler_ThreeWayYield(t *testing.T) {
	sched := NewScheduler(WithWorkers(1), WithUseCaller(true), WithName("s2"))
	require.NoError(t, sched.Start())

	var mu sync.Mutex
	var buf string
	write := func(s string) {
		mu.Lock()
		buf += s
		mu.Unlock()
	}

	f1 := NewFiber(func() {
		write("1")
		Yield()
		write("2")
		Yield()
		write("3")
	}, 0, true)
	f2 := NewFiber(func() {
		write("A")
		Yield()
		write("B")
	}, 0, true)

	require.NoError(t, sched.Schedule(NewFiberTask(f1)))
	require.NoError(t, sched.Schedule(NewFiberTask(f2)))

	require.NoError(t, sched.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "1A2B3", buf)
}

func TestScheduler_WorkerPinningIsHonored(t *testing.T) {
	sched := NewScheduler(WithWorkers(3))
	require.NoError(t, sched.Start())
	defer sched.Stop()

	seen := make(chan int, 1)
	require.NoError(t, sched.Schedule(NewTask(func() {
		if w, ok := currentWorkerAnchor.get(); ok {
			seen <- w.id
		} else {
			seen <- -1
		}
	}), 2))

	select {
	case id := <-seen:
		assert.Equal(t, 2, id)
	case <-time.After(2 * time.Second):
		t.Fatal("task pinned to worker 2 never ran")
	}
}

func TestScheduler_ScheduleAfterStopFails(t *testing.T) {
	sched := NewScheduler(WithWorkers(1))
	require.NoError(t, sched.Start())
	require.NoError(t, sched.Stop())

	err := sched.Schedule(NewTask(func() {}))
	assert.ErrorIs(t, err, ErrAlreadyStopped)
}

func TestScheduler_MetricsSnapshot(t *testing.T) {
	sched := NewScheduler(WithWorkers(2))
	require.NoError(t, sched.Start())

	done := make(chan struct{})
	require.NoError(t, sched.Schedule(NewTask(func() { close(done) })))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	require.NoError(t, sched.Stop())

	m := sched.Snapshot(0)
	assert.GreaterOrEqual(t, m.TasksExecuted, int64(1))
}
