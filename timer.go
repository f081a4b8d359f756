package fiberio

import (
	"container/heap"
	"reflect"
	"sync"
	"time"
	"unsafe"
	"weak"
)

// clockRollbackThreshold is the backward wall-clock jump past which every
// pending timer is treated as expired-now, to avoid an indefinite stall
// (spec §4.4 "Clock"). time.Now()'s monotonic reading already makes this
// unreachable in the overwhelmingly common case; the check exists for
// parity with the documented fallback path and is reached only when
// ListExpired is given a wall-clock-only time.Time (one stripped of its
// monotonic reading, e.g. via time.Time.Round(0)).
const clockRollbackThreshold = time.Hour

// timerEntry is one scheduled deadline. Ordered by (when, seq) so that
// timers scheduled for the same instant fire in submission order.
type timerEntry struct {
	when      time.Time
	period    time.Duration
	recurring bool
	fn        func()
	hasCond   bool
	cond      weak.Pointer[byte]
	seq       uint64
	index     int
	cancelled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerManager is an ordered collection of pending deadlines (spec §4.4):
// a container/heap min-heap keyed by (fire_time, insertion_sequence),
// adapted from the teacher's timerHeap (loop.go) with cancellation,
// Reset/Refresh, and weak-reference condition timers added, none of
// which the teacher's fire-once internal timer heap needed, since it has
// no public Timer handle.
type TimerManager struct {
	mu   sync.Mutex
	heap timerHeap
	seq  uint64

	lastWallCheck time.Time

	// onFront is called whenever the insert produces a new earliest
	// deadline (spec §4.4 "onTimerInsertedAtFront"). Base: no-op.
	// IOManager: tickle, so the idle fiber recomputes its epoll timeout.
	onFront func()
}

// NewTimerManager constructs an empty TimerManager.
func NewTimerManager() *TimerManager {
	return &TimerManager{lastWallCheck: time.Now(), onFront: func() {}}
}

// Timer is a handle to a single scheduled deadline.
type Timer struct {
	mgr   *TimerManager
	entry *timerEntry
}

// AddTimer inserts a new timer firing after d, returning its handle.
func (m *TimerManager) AddTimer(d time.Duration, fn func(), recurring bool) *Timer {
	return m.add(d, fn, recurring, false, weak.Pointer[byte]{})
}

// AddConditionTimer inserts a new timer that only invokes fn if cond is
// still reachable (not garbage collected) at fire time.
func (m *TimerManager) AddConditionTimer(d time.Duration, fn func(), cond any, recurring bool) *Timer {
	return m.add(d, fn, recurring, true, makeWeak(cond))
}

// makeWeak builds a weak.Pointer tracking cond's liveness without ever
// holding a strong reference to it, directly grounded on registry.go's
// weak.Pointer[promise] scavenging design, generalized here from a
// single concrete type to an arbitrary caller-supplied pointer-shaped
// value (*T, chan, map, or func). cond must be a reference type; a
// non-reference value (e.g. an int) has no stable address for the runtime
// to track and is treated as an immediately-dead condition.
//
// The weak.Pointer is parameterized on byte rather than cond's real type
// because its only use is a liveness check (Value() != nil); the
// underlying address is never dereferenced through it.
func makeWeak(cond any) weak.Pointer[byte] {
	if cond == nil {
		return weak.Pointer[byte]{}
	}
	rv := reflect.ValueOf(cond)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			return weak.Pointer[byte]{}
		}
		return weak.Make((*byte)(unsafe.Pointer(rv.Pointer())))
	default:
		return weak.Pointer[byte]{}
	}
}

func (m *TimerManager) add(d time.Duration, fn func(), recurring bool, hasCond bool, cond weak.Pointer[byte]) *Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e := &timerEntry{
		when:      time.Now().Add(d),
		period:    d,
		recurring: recurring,
		fn:        fn,
		hasCond:   hasCond,
		cond:      cond,
		seq:       m.seq,
	}
	heap.Push(&m.heap, e)
	if e.index == 0 {
		m.onFront()
	}
	return &Timer{mgr: m, entry: e}
}

// ListExpired pops every timer with fire_time <= now, returning their
// callables ready to be scheduled, and re-inserts recurring ones with
// fire_time = now + period. Condition timers whose condition has been
// collected are skipped (not invoked) but, if recurring, still rescheduled
// so future liveness is rechecked on their normal cadence.
func (m *TimerManager) ListExpired(now time.Time) []func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	forceAll := m.lastWallCheck.Sub(now) > clockRollbackThreshold
	m.lastWallCheck = now

	var callables []func()
	var rearm []*timerEntry
	for m.heap.Len() > 0 && (forceAll || !m.heap[0].when.After(now)) {
		e := heap.Pop(&m.heap).(*timerEntry)
		if e.cancelled {
			continue
		}
		alive := true
		if e.hasCond {
			alive = e.cond.Value() != nil
		}
		if alive {
			callables = append(callables, e.fn)
		}
		if e.recurring {
			e.when = now.Add(e.period)
			rearm = append(rearm, e)
		}
	}
	for _, e := range rearm {
		heap.Push(&m.heap, e)
	}
	return callables
}

// Len reports the number of pending (non-cancelled) timers.
func (m *TimerManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heap.Len()
}

// NextDeadline returns the earliest pending fire-time and true, or the
// zero time and false if no timers are pending.
func (m *TimerManager) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heap.Len() == 0 {
		return time.Time{}, false
	}
	return m.heap[0].when, true
}

// Cancel removes the timer in O(log n). Safe to call more than once or
// after the timer has already fired; subsequent calls are no-ops.
func (t *Timer) Cancel() {
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()
	if t.entry.cancelled || t.entry.index < 0 {
		return
	}
	t.entry.cancelled = true
	heap.Remove(&t.mgr.heap, t.entry.index)
}

// Reset re-sorts the timer in place to fire after d, either from now or
// from its original fire_time, depending on fromNow.
func (t *Timer) Reset(d time.Duration, fromNow bool) {
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()
	if t.entry.cancelled || t.entry.index < 0 {
		return
	}
	base := t.entry.when
	if fromNow {
		base = time.Now()
	}
	t.entry.when = base.Add(d)
	heap.Fix(&t.mgr.heap, t.entry.index)
}

// Refresh bumps fire_time to now + period, if the timer hasn't fired yet.
// Used to implement idle timeouts (spec §4.4).
func (t *Timer) Refresh() {
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()
	if t.entry.cancelled || t.entry.index < 0 {
		return
	}
	t.entry.when = time.Now().Add(t.entry.period)
	heap.Fix(&t.mgr.heap, t.entry.index)
}
