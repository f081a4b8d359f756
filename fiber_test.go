package fiberio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiber_ResumeYieldResume(t *testing.T) {
	var trace []string

	f := NewFiber(func() {
		trace = append(trace, "a")
		Yield()
		trace = append(trace, "b")
	}, 0, false)

	require.Equal(t, FiberReady, f.State())

	state := f.Resume()
	assert.Equal(t, FiberReady, state)
	assert.Equal(t, []string{"a"}, trace)

	state = f.Resume()
	assert.Equal(t, FiberTerm, state)
	assert.Equal(t, []string{"a", "b"}, trace)
}

func TestFiber_ResumeOnNonReadyPanics(t *testing.T) {
	f := NewFiber(func() {}, 0, false)
	f.Resume()
	require.Equal(t, FiberTerm, f.State())

	assert.Panics(t, func() { f.Resume() })
}

func TestFiber_PanicIsRecoveredAndLogged(t *testing.T) {
	f := NewFiber(func() {
		panic("boom")
	}, 0, false)

	var state FiberState
	assert.NotPanics(t, func() { state = f.Resume() })
	assert.Equal(t, FiberTerm, state)
}

func TestFiber_Reset(t *testing.T) {
	ran := 0
	f := NewFiber(func() { ran++ }, 0, false)
	f.Resume()
	require.Equal(t, FiberTerm, f.State())

	f.Reset(func() { ran += 10 })
	require.Equal(t, FiberReady, f.State())
	f.Resume()
	assert.Equal(t, 11, ran)
}

func TestFiber_ResetBeforeTermPanics(t *testing.T) {
	f := NewFiber(func() { Yield() }, 0, false)
	f.Resume()
	require.Equal(t, FiberReady, f.State())
	assert.Panics(t, func() { f.Reset(func() {}) })
}

func TestYield_OutsideFiberPanics(t *testing.T) {
	assert.Panics(t, func() { Yield() })
}

func TestCurrentFiber_TracksNesting(t *testing.T) {
	var innerSeenOuter, outerSeenDuringInner *Fiber

	var outer, inner *Fiber
	inner = NewFiber(func() {
		innerSeenOuter = CurrentFiber()
	}, 0, false)
	outer = NewFiber(func() {
		outerSeenDuringInner = CurrentFiber()
		inner.Resume()
	}, 0, false)

	outer.Resume()

	assert.Same(t, outer, outerSeenDuringInner)
	assert.Same(t, inner, innerSeenOuter)
	assert.Nil(t, CurrentFiber())
}
