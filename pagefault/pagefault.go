// Package pagefault classifies and services page faults, grounded
// directly in vm.c's vm_try_handle_fault: kernel-address
// faults and write-protection violations fail immediately, a fault
// inside a tracked supplemental page table entry claims it, and an
// unmapped fault just below the stack that looks like legitimate growth
// extends the stack by one page — anything else is a fatal access the
// caller must terminate the process for.
package pagefault

import (
	"github.com/jwoo0122/pintos-core/memcore"
	"github.com/jwoo0122/pintos-core/mmu"
	"github.com/jwoo0122/pintos-core/vmspt"
)

// Outcome classifies how a fault was resolved, so the syscalls/process
// layer knows whether to resume the faulting instruction or kill the
// process: resolved, stack-grown, or fatal.
type Outcome int

const (
	Resolved Outcome = iota
	StackGrown
	Fatal
)

// MaxStackGrowth bounds how far below USER_STACK a fault is still
// considered legitimate stack growth rather than a wild pointer: within
// 1 MiB below UserStackTop.
const MaxStackGrowth = 1 << 20 // 1 MiB

// UserStackTop is the highest user-space stack address; named the way
// threads/vaddr.h's USER_STACK would be, though this core keeps no
// hardware memory map and treats it as a pure constant.
const UserStackTop = mmu.VA(0x47480000) // matches a KERN_BASE-relative USER_STACK

// Handle services one page fault at faultAddr for thread owning spt,
// whose saved user stack pointer at the most recent kernel entry was
// userRSP (the rsp-8 heuristic for a PUSH instruction's fault).
// kernelAddr reports whether the fault address is itself a kernel
// address (vm_try_handle_fault's is_kernel_vaddr check, which this core
// exposes as a caller-supplied predicate rather than a hardware range
// test, since address-space layout is out of scope here).
func Handle(spt *vmspt.Table, faultAddr, userRSP mmu.VA, kernelAddr bool, notPresent bool) Outcome {
	if kernelAddr {
		return Fatal
	}
	if !notPresent {
		// present but faulted: a write-protection violation, since this
		// core never marks a resident page not-present except through
		// eviction, which is invisible to user code.
		return Fatal
	}

	pageAddr := mmu.VA(memcore.RoundDown(uintptr(faultAddr)))

	if page := spt.Find(pageAddr); page != nil {
		if err := spt.Claim(pageAddr); err != 0 {
			return Fatal
		}
		return Resolved
	}

	if isStackGrowth(faultAddr, userRSP) {
		if err := spt.AllocAnon(pageAddr, true); err != 0 {
			return Fatal
		}
		if err := spt.Claim(pageAddr); err != 0 {
			return Fatal
		}
		return StackGrown
	}

	return Fatal
}

// isStackGrowth implements the stack-growth heuristic: the fault address is
// no more than 8 bytes below the saved user stack pointer (accounting
// for a PUSH instruction faulting on the page it's about to write to),
// is not above UserStackTop, and is within MaxStackGrowth of
// UserStackTop. It does not compare against any recorded stack bottom.
func isStackGrowth(faultAddr, userRSP mmu.VA) bool {
	if faultAddr > UserStackTop {
		return false
	}
	if faultAddr < userRSP-8 {
		return false
	}
	return faultAddr > UserStackTop-MaxStackGrowth
}
