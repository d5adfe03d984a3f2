package sched

import (
	"runtime"
	"sync"

	"github.com/jwoo0122/pintos-core/bootargs"
	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/fixedpoint"
	"github.com/jwoo0122/pintos-core/kstat"
	"github.com/jwoo0122/pintos-core/synch"
)

// Sched_t is the single virtual CPU: the ready queue, the sleepers
// list, the currently running thread, and the MLFQ accounting state.
// It implements synch.Scheduler so the synch package's
// Lock/Semaphore/Cond can block and wake threads without importing
// sched.
type Sched_t struct {
	mu sync.Mutex

	ready    []*Thread_t
	sleepers []*Thread_t
	all      []*Thread_t
	current  *Thread_t

	nextTid defs.Tid_t
	tick    int64

	cfg     bootargs.Config
	loadAvg fixedpoint.F

	Stats kstat.Core
}

// New creates a scheduler configured per cfg (boot args: -o mlfqs
// selects the MLFQ policy over strict-priority-only).
func New(cfg bootargs.Config) *Sched_t {
	return &Sched_t{cfg: cfg}
}

// Start dispatches the highest-priority ready thread if the CPU is
// idle, the way thread_start hands off to the first runnable thread
// after boot. Call once after creating the initial thread(s).
func (s *Sched_t) Start() {
	s.mu.Lock()
	if s.current == nil {
		s.dispatchLocked()
	}
	s.mu.Unlock()
}

// Create makes a new thread in the Ready state and returns its tid. If
// the CPU is idle the thread waits for Start; otherwise it is
// preempted into only if it outranks the calling thread: a low-priority
// thread is preempted by a higher-priority thread it just created,
// before Create returns.
func (s *Sched_t) Create(name string, priority int, entry func(arg any), arg any) defs.Tid_t {
	t := s.NewThread(name, priority, nil)
	s.Launch(t, entry, arg)
	return t.Tid
}

// NewThread reserves a tid and constructs a Thread_t without starting
// its goroutine or making it runnable, so a caller (procvm.Fork) can
// populate the new thread's address space, descriptor table, and
// parent/child links before anything can observe or run it. Pair with
// Launch once the thread is fully built.
func (s *Sched_t) NewThread(name string, priority int, parent *Thread_t) *Thread_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTid++
	t := newThread(s.nextTid, name, priority)
	t.Parent = parent
	s.all = append(s.all, t)
	return t
}

// Launch makes a thread built via NewThread runnable: it installs the
// entry point, inserts the thread into the ready queue, and starts its
// backing goroutine. If the CPU is idle the new thread just waits for a
// future Start(); if some thread is already running, Launch preempts it
// only when the new thread now outranks it — and since that preemption
// is enacted by calling Yield() on the caller's
// own behalf, Launch (and therefore Create) must only ever be called
// from within a running thread's own body, or before the first Start().
func (s *Sched_t) Launch(t *Thread_t, entry func(arg any), arg any) {
	t.entry, t.arg = entry, arg

	s.mu.Lock()
	s.insertReadyLocked(t)
	cur := s.current
	s.mu.Unlock()

	go s.runThread(t)

	if cur != nil && t.priority > cur.priority {
		s.Yield()
	}
	s.Stats.Created.Inc()
}

func (s *Sched_t) runThread(t *Thread_t) {
	<-t.proceed
	t.entry(t.arg)
	s.Exit(0)
}

// Current returns the running thread as a synch.Waiter, or nil. It
// implements synch.Scheduler: callers must already hold the scheduler
// lock (via Lock/Unlock) — synch's Semaphore/Lock/Cond always do.
func (s *Sched_t) Current() synch.Waiter {
	if s.current == nil {
		return nil
	}
	return s.current
}

// CurrentThread returns the running *Thread_t, locking internally; for
// callers outside the synch-package locked-call convention (e.g. a
// thread inspecting itself, or tests).
func (s *Sched_t) CurrentThread() *Thread_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Lock acquires the scheduler's single mutex, standing in for disabling
// interrupts around a run-queue manipulation.
func (s *Sched_t) Lock() { s.mu.Lock() }

// Unlock releases the scheduler lock.
func (s *Sched_t) Unlock() { s.mu.Unlock() }

// BlockLocked implements synch.Scheduler: it marks the running thread
// Blocked, dispatches the next ready thread, releases the scheduler
// lock while parked, and reacquires it before returning once some
// future Release/Up/UnblockLocked redispatches this thread.
func (s *Sched_t) BlockLocked() {
	t := s.current
	t.status = Blocked
	s.current = nil
	s.dispatchLocked()
	s.mu.Unlock()
	<-t.proceed
	s.mu.Lock()
}

// UnblockLocked implements synch.Scheduler: it moves w from Blocked to
// Ready, inserted in priority order, and immediately dispatches it if
// the CPU is idle. It never yields synchronously — callers (Semaphore.
// Up, Lock.Release) decide whether to yield once they've released the
// scheduler lock.
func (s *Sched_t) UnblockLocked(w synch.Waiter) {
	s.unblockLockedInner(w.(*Thread_t))
}

func (s *Sched_t) unblockLockedInner(t *Thread_t) {
	t.status = Ready
	s.insertReadyLocked(t)
	if s.current == nil {
		s.dispatchLocked()
	}
}

// Unblock is the public entry point for waking a thread from outside
// the synch package (e.g. a driver delivering an external event). It
// yields the caller immediately if t now outranks it — safe only from
// thread context, never from the tick/interrupt path; Tick uses
// unblockLockedInner directly and reports a deferred-yield flag
// instead.
func (s *Sched_t) Unblock(t *Thread_t) {
	s.mu.Lock()
	s.unblockLockedInner(t)
	cur := s.current
	s.mu.Unlock()
	if cur != nil && t != cur && t.priority > cur.priority {
		s.Yield()
	}
}

// Yield gives up the CPU to the highest-priority other Ready thread, if
// any, re-enqueueing the caller at the back of its priority band (round
// robin among equals). A Yield with nothing else ready is a no-op.
func (s *Sched_t) Yield() {
	s.mu.Lock()
	if len(s.ready) == 0 {
		s.mu.Unlock()
		return
	}
	t := s.current
	t.status = Ready
	s.current = nil
	s.insertReadyLocked(t)
	s.dispatchLocked()
	s.mu.Unlock()
	<-t.proceed
}

// SleepUntil blocks the calling thread until the scheduler's tick
// counter reaches untilTick (timer_sleep), inserted into the sleepers
// list in wake-time order.
func (s *Sched_t) SleepUntil(untilTick int64) {
	s.mu.Lock()
	t := s.current
	t.status = Blocked
	t.sleepWhen = s.tick
	if d := untilTick - s.tick; d > 0 {
		t.sleepWhile = d
	} else {
		t.sleepWhile = 0
	}
	s.current = nil
	s.insertSleeperLocked(t)
	s.dispatchLocked()
	s.mu.Unlock()
	<-t.proceed
}

// SetPriority sets the calling thread's base priority; a no-op under
// MLFQ, which owns priority entirely. Yields if the change drops the
// caller below the best Ready thread.
func (s *Sched_t) SetPriority(p int) {
	s.mu.Lock()
	if s.cfg.MLFQS {
		s.mu.Unlock()
		return
	}
	t := s.current
	t.originalPriority = p
	t.Refresh()
	needYield := s.highestReadyPriorityLocked() > t.priority
	s.mu.Unlock()
	if needYield {
		s.Yield()
	}
}

// SetNice sets the calling thread's niceness and immediately
// recomputes its MLFQ priority (thread_set_nice).
func (s *Sched_t) SetNice(n int) {
	s.mu.Lock()
	t := s.current
	t.niceness = n
	t.priority = calcMLFQPriority(t)
	needYield := s.highestReadyPriorityLocked() > t.priority
	s.mu.Unlock()
	if needYield {
		s.Yield()
	}
}

// GetNice returns the calling thread's niceness.
func (s *Sched_t) GetNice() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.niceness
}

// GetRecentCPU returns the calling thread's recent_cpu, scaled by 100
// and rounded to the nearest integer, matching the MLFQ reporting
// convention.
func (s *Sched_t) GetRecentCPU() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fixedpoint.Percent100(s.current.recentCPU)
}

// GetLoadAvg returns the system load average, scaled by 100 and rounded
// to the nearest integer.
func (s *Sched_t) GetLoadAvg() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fixedpoint.Percent100(s.loadAvg)
}

// Exit tears the calling thread down: it marks it Dying, records the
// exit code, dispatches the next thread, signals ExitReady for any
// parent blocked in Wait, and terminates the goroutine via
// runtime.Goexit so control never returns to the caller.
func (s *Sched_t) Exit(code int) {
	s.mu.Lock()
	t := s.current
	t.status = Dying
	t.ExitCode = code
	s.current = nil
	s.removeAllLocked(t)
	s.dispatchLocked()
	s.mu.Unlock()

	if t.ExitReady != nil {
		t.ExitReady.Up()
	}
	s.Stats.Exited.Inc()
	runtime.Goexit()
}

// Wait blocks parent until the child tid exits, returning its exit
// code, then forgets the child so a second Wait on the same tid fails
// with ECHILD.
func Wait(parent *Thread_t, tid defs.Tid_t) (int, defs.Err_t) {
	child := parent.ChildByTid(tid)
	if child == nil {
		return -1, defs.ECHILD
	}
	child.ExitReady.Down()
	code := child.ExitCode
	parent.removeChild(child)
	if child.ExitAcknowledged != nil {
		child.ExitAcknowledged.Up()
	}
	return code, 0
}

// Tick advances the scheduler clock by one timer tick: it wakes due
// sleepers, and under MLFQ updates recent_cpu/load_avg/priority on the
// standard 1-tick/4-tick/1-second boundaries. It never yields itself —
// it reports whether the caller should yield once execution reaches a
// safe point outside the tick handler ("yield on return" discipline
// for interrupt context).
func (s *Sched_t) Tick() (shouldYield bool) {
	s.mu.Lock()
	s.tick++
	now := s.tick

	i := 0
	for i < len(s.sleepers) && s.sleepers[i].WakeAt() <= now {
		i++
	}
	due := s.sleepers[:i]
	s.sleepers = s.sleepers[i:]
	for _, t := range due {
		s.unblockLockedInner(t)
	}

	if s.cfg.MLFQS {
		if s.current != nil {
			s.current.recentCPU = fixedpoint.AddInt(s.current.recentCPU, 1)
		}
		if now%int64(s.cfg.TimerFreq) == 0 {
			s.updateLoadAvgLocked()
			s.updateAllRecentCPULocked()
			s.recomputeAllPrioritiesLocked()
		} else if now%4 == 0 {
			s.recomputeAllPrioritiesLocked()
		}
	}

	shouldYield = s.current != nil && s.highestReadyPriorityLocked() > s.current.priority
	s.mu.Unlock()
	return shouldYield
}

func (s *Sched_t) dispatchLocked() {
	if len(s.ready) == 0 {
		s.current = nil
		return
	}
	next := s.ready[0]
	s.ready = s.ready[1:]
	next.status = Running
	s.current = next
	select {
	case next.proceed <- struct{}{}:
	default:
	}
}

// insertReadyLocked keeps s.ready sorted by descending priority, with
// equal-priority threads kept in arrival order (round robin among
// equals).
func (s *Sched_t) insertReadyLocked(t *Thread_t) {
	i := 0
	for i < len(s.ready) && s.ready[i].priority >= t.priority {
		i++
	}
	s.ready = append(s.ready, nil)
	copy(s.ready[i+1:], s.ready[i:])
	s.ready[i] = t
}

func (s *Sched_t) insertSleeperLocked(t *Thread_t) {
	wake := t.WakeAt()
	i := 0
	for i < len(s.sleepers) && s.sleepers[i].WakeAt() <= wake {
		i++
	}
	s.sleepers = append(s.sleepers, nil)
	copy(s.sleepers[i+1:], s.sleepers[i:])
	s.sleepers[i] = t
}

func (s *Sched_t) highestReadyPriorityLocked() int {
	if len(s.ready) == 0 {
		return defs.PriMin - 1
	}
	return s.ready[0].priority
}

func (s *Sched_t) removeAllLocked(t *Thread_t) {
	for i, x := range s.all {
		if x == t {
			s.all = append(s.all[:i], s.all[i+1:]...)
			return
		}
	}
}
