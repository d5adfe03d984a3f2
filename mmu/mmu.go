// Package mmu names the abstract hardware page-table operations the
// core relies on: map, unmap, translate, is_dirty, set_dirty. The
// MMU/CPU bring-up itself is out of scope; Software here is a
// page-table simulator sufficient to drive the fault handler and fork
// logic in tests and the demo harness, in the spirit of a
// vm.Pmap_t + PTE_* bit layout (vm/as.go) without needing real
// page-table hardware.
package mmu

import "github.com/jwoo0122/pintos-core/memcore"

// VA is a user virtual address, always treated page-aligned by callers.
type VA uintptr

// Ops is the hardware page-table contract a process address space is
// built on.
type Ops interface {
	// Map installs va -> kva with the given writable bit. It reports
	// false if va is already mapped (DoubleMap).
	Map(va VA, kva *memcore.Page, writable bool) bool
	// Unmap removes any mapping at va. It is a no-op if none exists.
	Unmap(va VA)
	// Translate returns the frame currently mapped at va, if any.
	Translate(va VA) (kva *memcore.Page, writable bool, ok bool)
	// IsDirty reports the hardware dirty bit for the page mapped at va.
	IsDirty(va VA) bool
	// SetDirty sets or clears the hardware dirty bit for va.
	SetDirty(va VA, dirty bool)
}

type entry struct {
	kva      *memcore.Page
	writable bool
	dirty    bool
}

// Software is a Go map standing in for a hardware page table (one per
// address space), used by pagefault/procvm tests and cmd/coredemo.
type Software struct {
	table map[VA]*entry
}

// NewSoftware creates an empty software page table.
func NewSoftware() *Software {
	return &Software{table: make(map[VA]*entry)}
}

func (s *Software) Map(va VA, kva *memcore.Page, writable bool) bool {
	if _, ok := s.table[va]; ok {
		return false
	}
	s.table[va] = &entry{kva: kva, writable: writable}
	return true
}

func (s *Software) Unmap(va VA) {
	delete(s.table, va)
}

func (s *Software) Translate(va VA) (*memcore.Page, bool, bool) {
	e, ok := s.table[va]
	if !ok {
		return nil, false, false
	}
	return e.kva, e.writable, true
}

func (s *Software) IsDirty(va VA) bool {
	e, ok := s.table[va]
	return ok && e.dirty
}

func (s *Software) SetDirty(va VA, dirty bool) {
	if e, ok := s.table[va]; ok {
		e.dirty = dirty
	}
}

// Clone produces an independent copy of the mapping set (not the
// backing pages themselves) used while constructing a forked child's
// page table before resident frames are copied in by procvm.
func (s *Software) Clone() *Software {
	n := NewSoftware()
	for va, e := range s.table {
		cp := *e
		n.table[va] = &cp
	}
	return n
}
