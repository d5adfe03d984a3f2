// Package procvm implements fork's address-space duplication, grounded
// in vm.c's supplemental_page_table_copy (completed by vmspt.CopyInto,
// since the original leaves the body as a TODO stub) plus fd.Copyfd for
// descriptor duplication and the process_fork/__do_fork synchronous
// handshake from userprog/syscall.c: the caller blocks until the
// child's address space is fully built before fork() returns, so the
// parent never observes a half-built child.
package procvm

import (
	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/frame"
	"github.com/jwoo0122/pintos-core/mmu"
	"github.com/jwoo0122/pintos-core/sched"
	"github.com/jwoo0122/pintos-core/synch"
	"github.com/jwoo0122/pintos-core/vmspt"
)

// Fork duplicates parent into a new child thread: a cloned page table,
// a copied supplemental page table (UNINIT entries mirrored lazily,
// resident pages claimed-and-copied immediately), and a copied fd
// table. resume is invoked in the child's own goroutine once its
// address space is ready, standing in for the child resuming execution
// at the fork point with an intr_frame whose return value reads 0; the
// actual register/intr_frame save-restore is out of scope here, named
// only.
//
// Fork blocks the caller until the child's copy completes (ForkSignal
// handshake) and returns the child's tid, or -1 and the error if the
// copy failed — matching process_fork's synchronous semantics rather
// than letting the parent race ahead of a still-copying child.
func Fork(s *sched.Sched_t, parent *sched.Thread_t, frames frame.Table, resume func(child *sched.Thread_t)) (defs.Tid_t, defs.Err_t) {
	child := s.NewThread(parent.Name, parent.Priority(), parent)
	parent.Children = append(parent.Children, child)

	child.ExitReady = synch.NewSemaphore(s, 0)
	child.ExitAcknowledged = synch.NewSemaphore(s, 0)
	child.ForkSignal = synch.NewSemaphore(s, 0)

	childMMU := parent.MMU.(*mmu.Software).Clone()
	child.MMU = childMMU
	child.SPT = vmspt.New(frames, childMMU)
	if stats := parent.SPT.Stats(); stats != nil {
		child.SPT.SetStats(stats)
	}
	child.Fds = parent.Fds.Copy()
	child.UserRSP = parent.UserRSP
	child.StackBottom = parent.StackBottom

	// The child thread performs its own address-space copy, matching
	// __do_fork running in the child's context in the original; the
	// parent blocks on ForkSignal until the child reports success or
	// failure, so it never observes a half-built child.
	var copyErr defs.Err_t
	s.Launch(child, func(arg any) {
		copyErr = parent.SPT.CopyInto(child.SPT)
		child.ForkSignal.Up()
		if copyErr != 0 {
			s.Exit(-1)
			return
		}
		resume(child)
	}, nil)

	child.ForkSignal.Down()
	if copyErr != 0 {
		return defs.TidError, copyErr
	}
	return child.Tid, 0
}
