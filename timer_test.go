package fiberio

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerManager_FiresInOrder(t *testing.T) {
	m := NewTimerManager()
	var order []int

	m.AddTimer(30*time.Millisecond, func() { order = append(order, 3) }, false)
	m.AddTimer(10*time.Millisecond, func() { order = append(order, 1) }, false)
	m.AddTimer(20*time.Millisecond, func() { order = append(order, 2) }, false)

	deadline := time.Now().Add(60 * time.Millisecond)
	var fns []func()
	for time.Now().Before(deadline) && len(fns) < 3 {
		fns = append(fns, m.ListExpired(time.Now())...)
		if len(fns) < 3 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	require.Len(t, fns, 3)
	for _, fn := range fns {
		fn()
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

// TestTimerManager_CancelIdempotence mirrors spec scenario S4: a timer
// cancelled before it would fire never invokes its callback.
func TestTimerManager_CancelIdempotence(t *testing.T) {
	m := NewTimerManager()
	var fired atomic.Bool
	timer := m.AddTimer(50*time.Millisecond, func() { fired.Store(true) }, false)

	time.Sleep(20 * time.Millisecond)
	timer.Cancel()
	timer.Cancel() // safe to call twice

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, m.ListExpired(time.Now()))
	assert.False(t, fired.Load())
	assert.Equal(t, 0, m.Len())
}

func TestTimerManager_ConditionTimerSkipsAfterTargetCollected(t *testing.T) {
	m := NewTimerManager()
	var count atomic.Int32

	func() {
		cond := new(int) // scoped so it becomes unreachable once this returns
		m.AddConditionTimer(5*time.Millisecond, func() { count.Add(1) }, cond, true)

		for i := 0; i < 3; i++ {
			time.Sleep(8 * time.Millisecond)
			for _, fn := range m.ListExpired(time.Now()) {
				fn()
			}
		}
	}()
	require.GreaterOrEqual(t, count.Load(), int32(1))

	runtime.GC()
	runtime.GC()

	before := count.Load()
	for i := 0; i < 3; i++ {
		time.Sleep(8 * time.Millisecond)
		for _, fn := range m.ListExpired(time.Now()) {
			fn()
		}
	}
	assert.Equal(t, before, count.Load())
}

func TestTimerManager_Refresh(t *testing.T) {
	m := NewTimerManager()
	var fired atomic.Bool
	timer := m.AddTimer(20*time.Millisecond, func() { fired.Store(true) }, false)

	time.Sleep(10 * time.Millisecond)
	timer.Refresh() // pushes deadline out another 20ms from now

	time.Sleep(15 * time.Millisecond)
	assert.Empty(t, m.ListExpired(time.Now()))
	assert.False(t, fired.Load())

	time.Sleep(15 * time.Millisecond)
	expired := m.ListExpired(time.Now())
	require.Len(t, expired, 1)
}

func TestTimerManager_NextDeadline(t *testing.T) {
	m := NewTimerManager()
	_, ok := m.NextDeadline()
	assert.False(t, ok)

	m.AddTimer(100*time.Millisecond, func() {}, false)
	when, ok := m.NextDeadline()
	require.True(t, ok)
	assert.True(t, when.After(time.Now()))
}
