package pagefault

import (
	"testing"

	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/frame"
	"github.com/jwoo0122/pintos-core/memcore"
	"github.com/jwoo0122/pintos-core/mmu"
	"github.com/jwoo0122/pintos-core/vmspt"
)

func newSPT(capacity int) *vmspt.Table {
	pool := memcore.NewHeapPool(0)
	frames := frame.NewFIFO(pool, capacity)
	return vmspt.New(frames, mmu.NewSoftware())
}

func TestKernelAddressFaultIsFatal(t *testing.T) {
	spt := newSPT(4)
	if got := Handle(spt, mmu.VA(0xC0000000), mmu.VA(0x47470000), true, true); got != Fatal {
		t.Fatalf("kernel-address fault = %v, want Fatal", got)
	}
}

func TestPresentPageFaultIsFatal(t *testing.T) {
	spt := newSPT(4)
	spt.AllocUninit(0x1000, true, nil)
	spt.Claim(0x1000)

	if got := Handle(spt, mmu.VA(0x1000), mmu.VA(0x47470000), false, false); got != Fatal {
		t.Fatalf("present-page protection fault = %v, want Fatal", got)
	}
}

func TestTrackedPageClaimsAndResolves(t *testing.T) {
	spt := newSPT(4)
	ran := false
	spt.AllocUninit(0x2000, true, func(kva *memcore.Page) defs.Err_t {
		ran = true
		return 0
	})

	if got := Handle(spt, mmu.VA(0x2000), mmu.VA(0x47470000), false, true); got != Resolved {
		t.Fatalf("tracked not-present fault = %v, want Resolved", got)
	}
	if !ran {
		t.Fatalf("Handle should have claimed the page, running its initializer")
	}
}

func TestStackGrowthWithinHeuristicGrowsStack(t *testing.T) {
	spt := newSPT(4)
	userRSP := UserStackTop - 32

	got := Handle(spt, userRSP-8, userRSP, false, true)
	if got != StackGrown {
		t.Fatalf("fault just below rsp = %v, want StackGrown", got)
	}
	if spt.Find(userRSP-8) == nil {
		t.Fatalf("stack growth should register a new anonymous page")
	}
}

func TestFaultBelowRSPMinusEightIsFatal(t *testing.T) {
	spt := newSPT(4)
	userRSP := UserStackTop - 32

	got := Handle(spt, userRSP-9, userRSP, false, true)
	if got != Fatal {
		t.Fatalf("fault more than 8 bytes below rsp = %v, want Fatal", got)
	}
}

func TestFaultAboveUserStackTopIsFatal(t *testing.T) {
	spt := newSPT(4)
	got := Handle(spt, UserStackTop+mmu.VA(memcore.PGSIZE), UserStackTop, false, true)
	if got != Fatal {
		t.Fatalf("fault above UserStackTop = %v, want Fatal", got)
	}
}

func TestFaultTooFarBelowStackIsFatal(t *testing.T) {
	spt := newSPT(4)
	userRSP := UserStackTop - 8
	faultAddr := UserStackTop - MaxStackGrowth - 1

	got := Handle(spt, faultAddr, userRSP, false, true)
	if got != Fatal {
		t.Fatalf("wild pointer far below stack = %v, want Fatal", got)
	}
}

func TestUntrackedAddressFarFromStackIsFatal(t *testing.T) {
	spt := newSPT(4)
	if got := Handle(spt, mmu.VA(0x5000), mmu.VA(0x47470000), false, true); got != Fatal {
		t.Fatalf("wild untracked pointer = %v, want Fatal", got)
	}
}

// TestUnalignedFaultInsideTrackedPageResolves checks that a fault
// address that lands mid-page (as a real #PF almost always does) still
// resolves against the tracked page covering it, instead of being
// misclassified as stack growth or a fatal access.
func TestUnalignedFaultInsideTrackedPageResolves(t *testing.T) {
	spt := newSPT(4)
	ran := false
	spt.AllocUninit(0x2000, true, func(kva *memcore.Page) defs.Err_t {
		ran = true
		return 0
	})

	if got := Handle(spt, mmu.VA(0x2010), mmu.VA(0x47470000), false, true); got != Resolved {
		t.Fatalf("unaligned fault inside a tracked page = %v, want Resolved", got)
	}
	if !ran {
		t.Fatalf("Handle should have claimed the page covering the fault address")
	}
}
