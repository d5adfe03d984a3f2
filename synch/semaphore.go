package synch

// Semaphore is a nonnegative counter plus an ordered wait list. Down
// blocks while the counter is zero; Up wakes the highest-priority
// waiter and yields the caller if that waiter now outranks it.
type Semaphore struct {
	sched   Scheduler
	value   int
	waiters []Waiter
}

// NewSemaphore creates a semaphore with the given initial value.
func NewSemaphore(sched Scheduler, value int) *Semaphore {
	return &Semaphore{sched: sched, value: value}
}

// Value returns the current counter value, for diagnostics/tests only;
// it is not part of the blocking protocol.
func (s *Semaphore) Value() int {
	s.sched.Lock()
	defer s.sched.Unlock()
	return s.value
}

// Down waits until the counter is positive, then decrements it.
func (s *Semaphore) Down() {
	s.sched.Lock()
	for s.value == 0 {
		s.waiters = insertByPriority(s.waiters, s.sched.Current())
		s.sched.BlockLocked()
	}
	s.value--
	s.sched.Unlock()
}

// Up increments the counter and wakes the highest-priority waiter, if
// any, then yields the caller if the woken thread now outranks it.
func (s *Semaphore) Up() {
	s.sched.Lock()
	var woken Waiter
	if len(s.waiters) > 0 {
		woken, s.waiters = popHighest(s.waiters)
		s.sched.UnblockLocked(woken)
	}
	s.value++
	cur := s.sched.Current()
	s.sched.Unlock()

	if woken != nil && cur != nil && woken.Priority() > cur.Priority() {
		s.sched.Yield()
	}
}
