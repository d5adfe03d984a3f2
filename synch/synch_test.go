package synch

import "testing"

type fakeWaiter struct{ p int }

func (f *fakeWaiter) Priority() int { return f.p }

func TestInsertAndPopHighestPriority(t *testing.T) {
	var list []Waiter
	list = insertByPriority(list, &fakeWaiter{10})
	list = insertByPriority(list, &fakeWaiter{40})
	list = insertByPriority(list, &fakeWaiter{20})
	list = insertByPriority(list, &fakeWaiter{40})

	if list[0].Priority() != 40 || list[1].Priority() != 40 {
		t.Fatalf("expected the two 40s first, got %v, %v", list[0].Priority(), list[1].Priority())
	}

	w, rest := popHighest(list)
	if w.Priority() != 40 {
		t.Fatalf("popHighest = %d, want 40", w.Priority())
	}
	if len(rest) != 3 {
		t.Fatalf("rest length = %d, want 3", len(rest))
	}
}

// fakeDonor is a minimal Donor used to exercise donation-chain math
// (Lock.donateChain) without a real scheduler.
type fakeDonor struct {
	name     string
	prio     int
	base     int
	waiting  *Lock
	held     []*Lock
}

func (f *fakeDonor) Priority() int       { return f.prio }
func (f *fakeDonor) BasePriority() int    { return f.base }
func (f *fakeDonor) Donate(p int)         { f.prio = p }
func (f *fakeDonor) Waiting() *Lock       { return f.waiting }
func (f *fakeDonor) SetWaiting(l *Lock)   { f.waiting = l }
func (f *fakeDonor) HeldLocks() []*Lock   { return f.held }
func (f *fakeDonor) AddHeldLock(l *Lock)  { f.held = append(f.held, l) }
func (f *fakeDonor) RemoveHeldLock(l *Lock) {
	for i, h := range f.held {
		if h == l {
			f.held = append(f.held[:i], f.held[i+1:]...)
			return
		}
	}
}

func (f *fakeDonor) Refresh() {
	best := f.base
	for _, l := range f.held {
		if p, ok := l.HighestWaiterPriorityLocked(); ok && p > best {
			best = p
		}
	}
	f.prio = best
}

// TestDonationChainScenario reproduces a classic donation chain: H(40)
// waits on L1 held by M(31) which waits on L2 held by L(10).
func TestDonationChainScenario(t *testing.T) {
	l1 := &Lock{}
	l2 := &Lock{}

	low := &fakeDonor{name: "L", prio: 10, base: 10}
	mid := &fakeDonor{name: "M", prio: 31, base: 31}
	high := &fakeDonor{name: "H", prio: 40, base: 40}

	l2.holder = low
	l1.holder = mid
	mid.waiting = l2

	// H joins L1's wait list and donates along L1 -> M -> L2 -> L.
	l1.waiters = insertByPriority(l1.waiters, high)
	l1.donateChain(high)

	if mid.Priority() != 40 {
		t.Fatalf("M's priority = %d, want 40 (donated by H)", mid.Priority())
	}
	if low.Priority() != 40 {
		t.Fatalf("L's priority = %d, want 40 (donated transitively)", low.Priority())
	}
}
