package fiberio

import "sync/atomic"

// FiberState is a value in the Fiber state lattice: READY -> RUNNING ->
// {READY, TERM}. See Fiber.Resume and Fiber.Yield.
type FiberState uint32

const (
	// FiberReady means the fiber is not currently running, but is eligible
	// to be resumed.
	FiberReady FiberState = iota
	// FiberRunning means the fiber is the one currently executing on its
	// thread. At most one fiber per thread is ever FiberRunning.
	FiberRunning
	// FiberTerm means the fiber's callable has returned (or panicked). A
	// FiberTerm fiber must never be resumed again.
	FiberTerm
)

func (s FiberState) String() string {
	switch s {
	case FiberReady:
		return "Ready"
	case FiberRunning:
		return "Running"
	case FiberTerm:
		return "Term"
	default:
		return "Unknown"
	}
}

// fiberState is a lock-free state cell, CAS-only, mirroring the cache-line
// discipline of the teacher's FastState but sized for the smaller 3-value
// Fiber lattice. Padding is skipped here deliberately: Fiber instances
// are not a hot shared cache line the way the Scheduler/IOManager state is;
// see DESIGN.md).
type fiberState struct {
	v atomic.Uint32
}

func newFiberState(s FiberState) *fiberState {
	fs := &fiberState{}
	fs.v.Store(uint32(s))
	return fs
}

func (s *fiberState) Load() FiberState { return FiberState(s.v.Load()) }

func (s *fiberState) Store(v FiberState) { s.v.Store(uint32(v)) }

func (s *fiberState) TryTransition(from, to FiberState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// SchedulerState is the lifecycle of a Scheduler/IOManager.
//
// State Machine:
//
//	Created  -> Running     [Start()]
//	Running  -> Stopping    [Stop()]
//	Stopping -> Stopped     [all workers joined, quiescent]
//
// NOTE: unlike the teacher's Loop (single goroutine, CAS between Running and
// Sleeping every tick), a Scheduler's SchedulerState only tracks the
// coarse start/stop lifecycle; per-worker idle/active accounting lives in
// Scheduler.activeThreads/idleThreads (plain atomics), since "sleeping" is a
// per-worker condition here, not a whole-scheduler one.
type SchedulerState uint32

const (
	// SchedulerCreated is the state before Start is called.
	SchedulerCreated SchedulerState = iota
	// SchedulerRunning is the state after Start, while workers are live.
	SchedulerRunning
	// SchedulerStopping is the state after Stop is called, before workers
	// have fully drained and joined.
	SchedulerStopping
	// SchedulerStopped is the terminal state; the scheduler is not
	// restartable once reached.
	SchedulerStopped
)

func (s SchedulerState) String() string {
	switch s {
	case SchedulerCreated:
		return "Created"
	case SchedulerRunning:
		return "Running"
	case SchedulerStopping:
		return "Stopping"
	case SchedulerStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// fastState is a cache-line-padded, CAS-only state cell for the Scheduler's
// coarse lifecycle, adapted directly from the teacher's FastState
// (eventloop/state.go), which uses the identical padding rationale to
// avoid false sharing between cores polling the scheduler's state.
type fastState struct { //nolint:unused // betteralign:ignore
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newFastState(s SchedulerState) *fastState {
	fs := &fastState{}
	fs.v.Store(uint32(s))
	return fs
}

func (s *fastState) Load() SchedulerState { return SchedulerState(s.v.Load()) }

func (s *fastState) Store(v SchedulerState) { s.v.Store(uint32(v)) }

func (s *fastState) TryTransition(from, to SchedulerState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
