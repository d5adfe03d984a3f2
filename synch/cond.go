package synch

// waiterSema pairs a private one-shot semaphore with the priority the
// waiter had when it joined the condition variable, the way Pintos's
// synch.c threads a semaphore_elem per waiter through cond_wait.
type waiterSema struct {
	sema     *Semaphore
	priority int
}

func (w *waiterSema) Priority() int { return w.priority }

// Cond is a condition variable associated with a Lock that the caller
// must hold across Wait/Signal/Broadcast.
type Cond struct {
	sched   Scheduler
	waiters []Waiter
}

// NewCond creates an empty condition variable.
func NewCond(sched Scheduler) *Cond {
	return &Cond{sched: sched}
}

// Wait atomically releases lock and blocks the caller until signaled,
// then reacquires lock before returning.
func (c *Cond) Wait(lock *Lock, caller Donor) {
	ws := &waiterSema{sema: NewSemaphore(c.sched, 0), priority: caller.Priority()}
	c.waiters = insertByPriority(c.waiters, ws)
	lock.Release(caller)
	ws.sema.Down()
	lock.Acquire(caller)
}

// Signal wakes the highest-priority waiter, if any. lock must be held
// by the caller.
func (c *Cond) Signal(lock *Lock) {
	if len(c.waiters) == 0 {
		return
	}
	var w Waiter
	w, c.waiters = popHighest(c.waiters)
	w.(*waiterSema).sema.Up()
}

// Broadcast wakes every waiter. lock must be held by the caller.
func (c *Cond) Broadcast(lock *Lock) {
	for len(c.waiters) > 0 {
		c.Signal(lock)
	}
}
