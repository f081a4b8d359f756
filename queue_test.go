package fiberio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFOOrder(t *testing.T) {
	q := newTaskQueue()
	for i := 0; i < taskChunkSize*3+7; i++ {
		q.Push(NewTask(func() {}))
	}
	require.Equal(t, taskChunkSize*3+7, q.Length())

	for i := 0; i < taskChunkSize*3+7; i++ {
		_, ok := q.Pop()
		require.True(t, ok)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Length())
}

func TestTaskQueue_PopForHonorsPinning(t *testing.T) {
	q := newTaskQueue()
	q.Push(Task{Callable: func() {}, TargetThread: 2})
	q.Push(Task{Callable: func() {}, TargetThread: 0})
	q.Push(Task{Callable: func() {}, TargetThread: 1})

	task, ok := q.PopFor(1)
	require.True(t, ok)
	assert.Equal(t, 1, task.TargetThread)
	assert.Equal(t, 2, q.Length())

	// The two non-matching tasks were requeued, in order.
	task, ok = q.PopFor(2)
	require.True(t, ok)
	assert.Equal(t, 2, task.TargetThread)

	task, ok = q.PopFor(0)
	require.True(t, ok)
	assert.Equal(t, 0, task.TargetThread)

	assert.Equal(t, 0, q.Length())
}

func TestTaskQueue_PopForAnyThreadMatchesEverything(t *testing.T) {
	q := newTaskQueue()
	q.Push(NewTask(func() {}))

	task, ok := q.PopFor(5)
	require.True(t, ok)
	assert.Equal(t, AnyThread, task.TargetThread)
}

func TestTaskQueue_PopForNoMatchLeavesQueueIntact(t *testing.T) {
	q := newTaskQueue()
	q.Push(Task{Callable: func() {}, TargetThread: 9})

	_, ok := q.PopFor(1)
	assert.False(t, ok)
	assert.Equal(t, 1, q.Length())
}
