// Package sched implements the thread control block, run queues, the
// strict-priority scheduler core, and the MLFQ policy, grounded in
// threads/thread.h's struct thread and in a tinfo.go-style
// current-thread-pointer pattern — generalized here to a single owned
// *Sched_t ("CPU") rather than a runtime-patched goroutine-local, since
// this core is a library, not a booted kernel.
//
// Each Thread_t is backed by exactly one goroutine (runThread); at any
// instant at most one such goroutine holds the CPU "token" (is actually
// executing user code) — every other live thread's goroutine is parked
// on its own proceed channel, which Sched_t's dispatch logic signals to
// hand off the token. This reproduces a single-CPU, cooperative
// hand-off model ("preemptive at timer tick boundaries only ...
// interrupt handlers never block") using ordinary Go concurrency
// primitives instead of a context-switch trampoline.
package sched

import (
	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/fdtable"
	"github.com/jwoo0122/pintos-core/fixedpoint"
	"github.com/jwoo0122/pintos-core/mmu"
	"github.com/jwoo0122/pintos-core/synch"
	"github.com/jwoo0122/pintos-core/vmspt"
)

// Status mirrors threads/thread.h's thread_status enum.
type Status int

const (
	Running Status = iota
	Ready
	Blocked
	Dying
)

func (s Status) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Ready:
		return "READY"
	case Blocked:
		return "BLOCKED"
	case Dying:
		return "DYING"
	default:
		return "?"
	}
}

// threadMagic is the stack-overflow sentinel struct thread carries;
// since Go threads have no raw kernel stack for a corrupt write to
// clobber, this survives only as a documented invariant check
// (CheckMagic), not a load-bearing safety net the way it is in C.
const threadMagic = 0xc0ffee1e

// Thread_t is the per-thread control block.
type Thread_t struct {
	Tid  defs.Tid_t
	Name string

	status           Status
	priority         int
	originalPriority int

	sleepWhen  int64
	sleepWhile int64

	niceness  int
	recentCPU fixedpoint.F

	heldLocks   []*synch.Lock
	waitingLock *synch.Lock

	Parent   *Thread_t
	Children []*Thread_t

	ExitReady        *synch.Semaphore
	ExitAcknowledged *synch.Semaphore
	ExitCode         int
	ForkSignal       *synch.Semaphore

	Fds *fdtable.Table

	// MMU is the abstract hardware page-table operations this thread's
	// address space is built on (mmu.Ops), standing in for the page-table
	// root handle. SPT is the per-thread supplemental page table.
	MMU mmu.Ops
	SPT *vmspt.Table

	// UserRSP is the saved user stack pointer at kernel entry, used by
	// the page-fault handler's stack-growth heuristic.
	UserRSP uintptr
	// StackBottom holds a stack-bottom address for this thread. Fork
	// copies it from parent to child; pagefault.Handle neither reads
	// nor updates it, so stack growth does not record a new bottom here.
	StackBottom uintptr

	entry func(arg any)
	arg   any

	proceed chan struct{}
	magic   uint32
}

func newThread(tid defs.Tid_t, name string, priority int) *Thread_t {
	return &Thread_t{
		Tid:              tid,
		Name:             name,
		status:           Ready,
		priority:         priority,
		originalPriority: priority,
		Fds:              fdtable.New(),
		proceed:          make(chan struct{}, 1),
		magic:            threadMagic,
	}
}

// CheckMagic panics if the thread's sentinel has been corrupted (the
// stack-overflow detector).
func (t *Thread_t) CheckMagic() {
	if t.magic != threadMagic {
		panic("sched: thread magic corrupted (stack overflow)")
	}
}

// Status returns the thread's current lifecycle state.
func (t *Thread_t) Status() Status { return t.status }

// --- synch.Donor ---

func (t *Thread_t) Priority() int    { return t.priority }
func (t *Thread_t) BasePriority() int { return t.originalPriority }
func (t *Thread_t) Donate(p int)     { t.priority = p }
func (t *Thread_t) Waiting() *synch.Lock { return t.waitingLock }
func (t *Thread_t) SetWaiting(l *synch.Lock) { t.waitingLock = l }
func (t *Thread_t) HeldLocks() []*synch.Lock { return t.heldLocks }

func (t *Thread_t) AddHeldLock(l *synch.Lock) {
	t.heldLocks = append(t.heldLocks, l)
}

func (t *Thread_t) RemoveHeldLock(l *synch.Lock) {
	for i, h := range t.heldLocks {
		if h == l {
			t.heldLocks = append(t.heldLocks[:i], t.heldLocks[i+1:]...)
			return
		}
	}
}

// Refresh recomputes t's effective priority as the max of its base
// priority and the highest waiter across every lock it still holds (the
// donation refresh that runs on release / set_priority). Must be called
// with the scheduler locked, since it queries each held lock's waiter
// list.
func (t *Thread_t) Refresh() {
	best := t.originalPriority
	for _, l := range t.heldLocks {
		if p, ok := l.HighestWaiterPriorityLocked(); ok && p > best {
			best = p
		}
	}
	t.priority = best
}

// WakeAt returns the absolute tick at which a sleeping thread should
// wake (sleep_when + sleep_while).
func (t *Thread_t) WakeAt() int64 { return t.sleepWhen + t.sleepWhile }

// ChildByTid returns the live child with the given tid, or nil.
func (t *Thread_t) ChildByTid(tid defs.Tid_t) *Thread_t {
	for _, c := range t.Children {
		if c.Tid == tid {
			return c
		}
	}
	return nil
}

func (t *Thread_t) removeChild(c *Thread_t) {
	for i, ch := range t.Children {
		if ch == c {
			t.Children = append(t.Children[:i], t.Children[i+1:]...)
			return
		}
	}
}
