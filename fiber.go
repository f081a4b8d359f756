package fiberio

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultStackSize is the default stack-size hint for a Fiber (spec §6:
// fiber.stack_size, default 128 KiB). Go goroutine stacks grow
// automatically and cannot be pre-sized the way a ucontext stack can; this
// constant is the initial default hint NewFiber records when given no size.
// It is not applied as a stack ceiling: Go's process-wide ceiling changes
// only when SetMaxFiberStackSize is called.
const DefaultStackSize = 128 * 1024

var (
	fiberIDCounter  atomic.Uint64
	totalFiberCount atomic.Int64
	maxFiberStack   atomic.Int64
)

func init() {
	maxFiberStack.Store(DefaultStackSize)
}

// SetMaxFiberStackSize sets the process-wide stack-size ceiling applied via
// debug.SetMaxStack. It corresponds to spec §6's fiber.stack_size
// configuration value, read once at fiber construction in the original
// ucontext-based design; here it is process-wide because Go's stack growth
// ceiling (debug.SetMaxStack) is itself a process-wide setting, not a
// per-goroutine one; there is no Go equivalent of "allocate this one
// fiber a 64KiB stack and that one a 1MiB stack". n also becomes the default
// hint for later NewFiber calls given no size. Per-Fiber StackSize is only
// recorded (Fiber.StackSize) for observability; it never changes the ceiling.
func SetMaxFiberStackSize(n int) {
	if n <= 0 {
		return
	}
	maxFiberStack.Store(int64(n))
	debug.SetMaxStack(n)
}

// fiberSignal is sent by the fiber's own goroutine back to whichever
// goroutine last called Resume, to hand control back. It carries the state
// the fiber ended up in: FiberReady (voluntary yield) or FiberTerm (the
// callable returned or panicked).
type fiberSignal struct {
	state FiberState
	// panicVal is non-nil if the callable panicked on this leg. Resume logs
	// it; it is never propagated to the resumer as a Go panic or error,
	// per spec §7 ("never propagates exceptions across fiber boundaries").
	panicVal any
}

// resumeSignal is sent into a fiber's resumeCh on every Resume/Yield handoff.
// It carries the worker (if any) that is resuming this leg, so the fiber's
// own goroutine can anchor currentWorkerAnchor to the right value even
// though which worker resumes a given fiber can change from one leg to the
// next (an AnyThread-pinned task can be picked up by a different worker
// after each Yield).
type resumeSignal struct {
	owner *worker
}

// setWorkerAnchor anchors the calling goroutine to w, or clears the anchor
// if w is nil. Called on the fiber's own goroutine after every Resume/Yield
// handoff so CurrentScheduler resolves correctly from inside a callable.
func setWorkerAnchor(w *worker) {
	if w != nil {
		currentWorkerAnchor.set(w)
	} else {
		currentWorkerAnchor.clear()
	}
}

// Fiber is a stackful-style coroutine: a goroutine paired with two
// unbuffered rendezvous channels, such that at any instant only one side of
// the resume/yield pair is runnable. See SPEC_FULL.md §2 for why this is
// the idiomatic Go realization of spec.md's ucontext-based Fiber, and for
// the stack-size caveat (Go stacks grow automatically; they are not fixed
// and cannot fault on overflow the way a guard-paged stack can).
//
// The zero value is not usable; construct with NewFiber.
type Fiber struct {
	id     uint64
	state  *fiberState
	stack  int
	scheduled bool // RunsInScheduler: distinguishes task fibers from standalone ones

	callable func()

	resumeCh chan resumeSignal
	yieldCh  chan fiberSignal

	startOnce sync.Once
	started   bool
}

// NewFiber constructs a Fiber wrapping callable, with the given stack-size
// hint (informational; see SetMaxFiberStackSize) and runsInScheduler flag
// (spec §3: distinguishes scheduler-driven task fibers from standalone
// fibers used directly by a caller). The new fiber starts in FiberReady.
func NewFiber(callable func(), stackSize int, runsInScheduler bool) *Fiber {
	if stackSize <= 0 {
		stackSize = int(maxFiberStack.Load())
	}
	f := &Fiber{
		id:        fiberIDCounter.Add(1),
		state:     newFiberState(FiberReady),
		stack:     stackSize,
		scheduled: runsInScheduler,
		callable:  callable,
		resumeCh:  make(chan resumeSignal),
		yieldCh:   make(chan fiberSignal),
	}
	totalFiberCount.Add(1)
	return f
}

// ID returns the fiber's monotonically increasing identity.
func (f *Fiber) ID() uint64 { return f.id }

// State returns the fiber's current state.
func (f *Fiber) State() FiberState { return f.state.Load() }

// StackSize returns the stack-size hint this fiber was constructed with.
func (f *Fiber) StackSize() int { return f.stack }

// RunsInScheduler reports whether this fiber is scheduler-owned (a task
// fiber) as opposed to a standalone fiber resumed directly by a caller.
func (f *Fiber) RunsInScheduler() bool { return f.scheduled }

// TotalFibers returns the process-wide count of fibers that are currently
// alive: incremented by NewFiber and by Reset (a fiber becoming runnable
// again), decremented when a fiber's callable returns or panics (FiberTerm).
// This matches spec §8's boundary test ("creating 10,000 fibers ...
// total-fibers counter returns to the pre-test value"): a batch of fibers
// that all run to completion nets back to the count observed before they
// were created, whether or not they are later Reset and reused.
func TotalFibers() int64 { return totalFiberCount.Load() }

// CurrentFiberID returns the id of the fiber running on the calling
// goroutine, or 0 if the calling goroutine is not a fiber (e.g. it is a
// thread-main context).
func CurrentFiberID() uint64 {
	if f := CurrentFiber(); f != nil {
		return f.ID()
	}
	return 0
}

// CurrentFiber returns the Fiber whose callable is executing on the calling
// goroutine, via the goroutine-local anchor (see anchors.go), or nil.
func CurrentFiber() *Fiber {
	if v, ok := currentFiberAnchor.get(); ok {
		return v
	}
	return nil
}

// Resume switches control from the calling goroutine into the fiber. The
// precondition is that the fiber is in state FiberReady; violating it is a
// programmer error (spec §4.1) and Resume panics rather than silently
// no-oping, mirroring the source's fast-fail assertion semantics (spec §7).
//
// Resume blocks until the fiber yields or terminates, at which point it
// returns the fiber's resulting state (FiberReady or FiberTerm).
func (f *Fiber) Resume() FiberState {
	if !f.state.TryTransition(FiberReady, FiberRunning) {
		panic(fmt.Sprintf("fiberio: Resume called on fiber %d in state %s, want Ready", f.id, f.state.Load()))
	}

	f.startOnce.Do(func() {
		f.started = true
		go f.run()
	})

	owner, _ := currentWorkerAnchor.get()
	f.resumeCh <- resumeSignal{owner: owner}
	sig := <-f.yieldCh

	if sig.panicVal != nil {
		logPanic("fiber", f.id, sig.panicVal)
	}

	f.state.Store(sig.state)
	return sig.state
}

// Yield suspends the calling fiber, returning control to whichever
// goroutine last called Resume on it. It must be called from within the
// fiber's own goroutine (i.e. from inside the callable passed to
// NewFiber); calling it from any other goroutine is a programmer error.
//
// Yield returns when the fiber is subsequently Resumed again.
func Yield() {
	f := CurrentFiber()
	if f == nil {
		panic("fiberio: Yield called outside of a fiber")
	}
	f.yieldCh <- fiberSignal{state: FiberReady}
	sig := <-f.resumeCh
	setWorkerAnchor(sig.owner)
}

// run is the trampoline: the body of the fiber's own persistent goroutine,
// started once (lazily) and reused across every Resume/Yield leg for the
// fiber's whole lifetime. It anchors currentFiberAnchor to f on this
// goroutine, not on whichever goroutine happens to call Resume, which may
// be a worker goroutine driving many different fibers over time, or another
// fiber's own goroutine in a nested Resume, so CurrentFiber/Yield called
// from deep inside the callable resolve correctly regardless of nesting.
// It also anchors currentWorkerAnchor to the resuming worker, re-anchoring
// on every Yield/Resume leg (Yield updates it too) since an AnyThread task
// can be picked up by a different worker each time it is re-enqueued, so
// CurrentScheduler resolves to whichever worker most recently resumed it.
// Both anchors are cleared once the callable returns (or panics),
// immediately before the final handoff back to whoever is waiting in Resume.
func (f *Fiber) run() {
	sig := <-f.resumeCh

	currentFiberAnchor.set(f)
	setWorkerAnchor(sig.owner)

	var panicVal any
	func() {
		defer func() {
			panicVal = recover()
		}()
		f.callable()
	}()

	currentWorkerAnchor.clear()
	currentFiberAnchor.clear()
	totalFiberCount.Add(-1)
	f.yieldCh <- fiberSignal{state: FiberTerm, panicVal: panicVal}
}

// Reset reinitializes a terminated fiber with a new callable, allowing
// stack (goroutine) reuse. Precondition: the fiber is in state FiberTerm.
// Reset is a programmer error if called on a fiber that hasn't terminated.
func (f *Fiber) Reset(callable func()) {
	if f.state.Load() != FiberTerm {
		panic(fmt.Sprintf("fiberio: Reset called on fiber %d in state %s, want Term", f.id, f.state.Load()))
	}
	f.callable = callable
	f.resumeCh = make(chan resumeSignal)
	f.yieldCh = make(chan fiberSignal)
	f.startOnce = sync.Once{}
	f.started = false
	f.state.Store(FiberReady)
	totalFiberCount.Add(1)
}

// runSyscallLocked pins the calling goroutine to its OS thread for the
// duration of fn. It is a small helper used by the IOManager's idle fiber,
// so each poller wait runs on one OS thread from start to finish. The
// goroutine-keyed anchors in anchors.go do not depend on this pinning.
func runSyscallLocked(fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	fn()
}
