// Package vmspt is the per-process supplemental page table: the
// polymorphic page descriptor (UNINIT/ANON/FILE kinds behind a small
// vtable) plus the table that finds, inserts, removes, claims, copies,
// and tears down those descriptors, grounded directly in vm.c's struct
// page / page_operations and supplemental_page_table_*, carried into
// Go the way a Vm_t carries its Vmregion_t: a mutex-guarded struct with
// slice-backed lookup (vm/as.go).
package vmspt

import (
	"sync"

	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/frame"
	"github.com/jwoo0122/pintos-core/kstat"
	"github.com/jwoo0122/pintos-core/memcore"
	"github.com/jwoo0122/pintos-core/mmu"
)

// Kind is the page descriptor's current type (vm.c's enum vm_type).
type Kind int

const (
	Uninit Kind = iota
	Anon
	File
)

func (k Kind) String() string {
	switch k {
	case Uninit:
		return "UNINIT"
	case Anon:
		return "ANON"
	case File:
		return "FILE"
	default:
		return "?"
	}
}

// Initializer lazily produces a page's first-touch contents (a demand
// loaded segment or mmap'd file range), mirroring vm_initializer /
// lazy_load_segment's aux-closure pattern in vm.c — the aux struct
// becomes a plain Go closure here instead of a malloc'd context blob.
type Initializer func(kva *memcore.Page) defs.Err_t

// Backing distinguishes where a claimed page's contents live once it
// stops being UNINIT.
type Backing int

const (
	BackingNone Backing = iota
	BackingFile
)

// Page is one supplemental page table entry (vm.c's struct page). The
// vtable in the original (page_operations: swap_in/swap_out/destroy/
// type) is replaced with the Kind-dispatch methods below plus the
// file-backing fields, since Go has no anonymous-union equivalent of
// the C page's {uninit, anon, file} payload.
type Page struct {
	VA       mmu.VA
	Writable bool

	kind Kind
	init Initializer // set only while kind == Uninit

	// File-backing (vm_file): populated when kind == File via mmap.
	// file is the reopened handle backing this range; offset/length
	// describe the slice of it this page covers.
	file       FileBacked
	fileOffset int
	fileLength int

	// Anon swap-out (vm_anon_page's swap_slot): populated when an ANON
	// page is evicted while resident. hasSwap distinguishes a never-
	// touched ANON page from one whose contents are parked in swap,
	// since slot 0 is a valid slot id.
	swap     *swapStore
	hasSwap  bool
	swapSlot int

	pa  memcore.Pa_t
	kva *memcore.Page
}

// FileBacked is the subset of filesys.File a mmap'd page needs to read
// its contents in and write dirty contents back out; named narrowly
// here so vmspt does not have to import filesys.
type FileBacked interface {
	ReadAt(buf []byte, offset int) (int, defs.Err_t)
	WriteAt(buf []byte, offset int) (int, defs.Err_t)
}

// Kind reports the page's current type.
func (p *Page) Kind() Kind { return p.kind }

// Resident reports whether the page currently occupies a frame.
func (p *Page) Resident() bool { return p.kva != nil }

// evict backs evictAdapter.Evict (frame.Page): write back if
// file-backed and dirty, save an ANON page's contents to swap, remove
// the hardware mapping at p.VA, and clear the page's own frame
// bookkeeping (vm_evict_frame + swap_out). The frame table then returns
// the frame to its pool.
func (p *Page) evict(mmuOps mmu.Ops) defs.Err_t {
	switch p.kind {
	case File:
		if mmuOps.IsDirty(p.VA) {
			if err := p.writeback(); err != 0 {
				return err
			}
		}
	case Anon:
		p.swapSlot = p.swap.save(p.kva)
		p.hasSwap = true
	}
	mmuOps.Unmap(p.VA)
	p.kva = nil
	p.pa = 0
	return 0
}

func (p *Page) writeback() defs.Err_t {
	if p.file == nil {
		return 0
	}
	_, err := p.file.WriteAt(p.kva[:p.fileLength], p.fileOffset)
	return err
}

// swapIn populates a freshly allocated frame with the page's contents:
// run the lazy initializer for UNINIT pages, re-read the file range for
// FILE pages, or read back a previously swapped-out ANON page's slot
// (vm.c's swap_in dispatch). An ANON page that was never evicted has
// nothing to read back and is left zeroed, matching first touch.
func (p *Page) swapIn(kva *memcore.Page) defs.Err_t {
	switch p.kind {
	case Uninit:
		if p.init != nil {
			if err := p.init(kva); err != 0 {
				return err
			}
		}
	case File:
		if p.file != nil {
			if _, err := p.file.ReadAt(kva[:p.fileLength], p.fileOffset); err != 0 {
				return err
			}
		}
	case Anon:
		if p.hasSwap {
			saved := p.swap.load(p.swapSlot)
			if saved != nil {
				*kva = *saved
			}
			p.hasSwap = false
		}
	}
	return 0
}

// swapStore is an in-memory stand-in for swap.c's swap_disk: a slot id
// maps to one page's saved contents. A real swap device writes
// PGSIZE-sized slots to block storage; a map is enough to prove out
// evict/swap-in here without one.
type swapStore struct {
	mu    sync.Mutex
	next  int
	slots map[int]*memcore.Page
	stats *kstat.Core
}

func newSwapStore() *swapStore {
	return &swapStore{slots: make(map[int]*memcore.Page)}
}

// save copies kva into a fresh slot and returns its id (swap_out).
func (s *swapStore) save(kva *memcore.Page) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.next
	s.next++
	cp := *kva
	s.slots[slot] = &cp
	if s.stats != nil {
		s.stats.SwapOuts.Inc()
	}
	return slot
}

// load returns and releases the contents saved at slot (swap_in),
// or nil if nothing was ever saved there.
func (s *swapStore) load(slot int) *memcore.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	pg := s.slots[slot]
	delete(s.slots, slot)
	if s.stats != nil {
		s.stats.SwapIns.Inc()
	}
	return pg
}

// Table is the per-process supplemental page table (vm.c's struct
// supplemental_page_table), a flat slice under a mutex matching a
// small-N linear-scan Vmregion_t lookup style (vm/as.go) — process
// address spaces in this core are small enough that a slice scan beats
// the bookkeeping of a balanced tree, and it is what spt_find_page (a
// list walk) does too.
type Table struct {
	mu     sync.Mutex
	pages  []*Page
	frames frame.Table
	mmu    mmu.Ops
	swap   *swapStore
}

// New creates an empty supplemental page table backed by the given
// frame table and hardware page-table operations.
func New(frames frame.Table, mmuOps mmu.Ops) *Table {
	return &Table{frames: frames, mmu: mmuOps, swap: newSwapStore()}
}

// SetStats wires c as the counters this table's swap traffic reports
// into; nil (the default from New) disables counting.
func (t *Table) SetStats(c *kstat.Core) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.swap.stats = c
}

// Stats returns whatever kstat.Core was last wired with SetStats, or
// nil, so a forked child's table can inherit the parent's counters.
func (t *Table) Stats() *kstat.Core {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swap.stats
}

// pageRound rounds va down to its containing page, the way every
// lookup and allocation here must (vm.c keys the supplemental page
// table by page-aligned addresses, never raw fault addresses).
func pageRound(va mmu.VA) mmu.VA {
	return mmu.VA(memcore.RoundDown(uintptr(va)))
}

// AllocUninit registers a pending (not yet resident) page at va with
// the given lazy initializer (vm_alloc_page_with_initializer). It fails
// with ENOOVERLAP if va is already tracked (DoubleMap).
func (t *Table) AllocUninit(va mmu.VA, writable bool, init Initializer) defs.Err_t {
	va = pageRound(va)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.findLocked(va) != nil {
		return defs.ENOOVERLAP
	}
	t.pages = append(t.pages, &Page{VA: va, Writable: writable, kind: Uninit, init: init, swap: t.swap})
	return 0
}

// AllocFile registers a pending file-backed page for mmap.
func (t *Table) AllocFile(va mmu.VA, writable bool, file FileBacked, offset, length int) defs.Err_t {
	va = pageRound(va)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.findLocked(va) != nil {
		return defs.ENOOVERLAP
	}
	t.pages = append(t.pages, &Page{
		VA: va, Writable: writable, kind: File,
		file: file, fileOffset: offset, fileLength: length, swap: t.swap,
	})
	return 0
}

// Find returns the page descriptor covering va, rounding va down to
// its containing page first.
func (t *Table) Find(va mmu.VA) *Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findLocked(pageRound(va))
}

func (t *Table) findLocked(va mmu.VA) *Page {
	for _, p := range t.pages {
		if p.VA == va {
			return p
		}
	}
	return nil
}

// Remove drops the descriptor for va, writing back its contents first
// if it is a resident dirty file-backed page (do_munmap's dirty check),
// then tearing down its mapping and backing frame. Kill below is the
// whole-table teardown used on exit.
func (t *Table) Remove(va mmu.VA) {
	va = pageRound(va)
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, p := range t.pages {
		if p.VA == va {
			if p.kva != nil {
				if p.kind == File && t.mmu.IsDirty(p.VA) {
					p.writeback()
				}
				t.mmu.Unmap(p.VA)
				t.frames.Put(p.pa)
			}
			t.pages = append(t.pages[:i], t.pages[i+1:]...)
			return
		}
	}
}

// Claim maps in the page at va, allocating (or evicting for) a frame
// and populating it, mirroring vm_claim_page/vm_do_claim_page. It is a
// no-op returning success if the page is already resident.
func (t *Table) Claim(va mmu.VA) defs.Err_t {
	va = pageRound(va)
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.findLocked(va)
	if p == nil {
		return defs.EFAULT
	}
	return t.claimLocked(p)
}

func (t *Table) claimLocked(p *Page) defs.Err_t {
	if p.kva != nil {
		return 0
	}
	pa, kva, err := t.frames.Get(&evictAdapter{page: p, mmu: t.mmu})
	if err != 0 {
		return err
	}
	// swapIn runs before Map, the reverse of vm_do_claim_page's map-then-
	// swap_in order; harmless here since swapIn writes straight into the
	// kva buffer this frame already owns rather than through the
	// now-installed mapping.
	if err := p.swapIn(kva); err != 0 {
		t.frames.Put(pa)
		return err
	}
	if !t.mmu.Map(p.VA, kva, p.Writable) {
		t.frames.Put(pa)
		return defs.ENOOVERLAP
	}
	p.pa = pa
	p.kva = kva
	p.kind = resolvedKind(p)
	return 0
}

// resolvedKind is what vm.c's page_get_type reports once an UNINIT
// page has been claimed: the underlying permanent kind it was built
// with, not UNINIT itself. Since this core's Initializer closures don't
// carry a target kind the way vm_alloc_page_with_initializer's `type`
// argument does, every Uninit page (from AllocUninit or AllocAnon,
// with or without an initializer) becomes Anon on first claim, and a
// File page stays File.
func resolvedKind(p *Page) Kind {
	if p.kind == Uninit {
		return Anon
	}
	return p.kind
}

// AllocAnon registers a pending anonymous page (stack growth) that
// zero-fills on first claim rather than running a file- or
// segment-backed initializer.
func (t *Table) AllocAnon(va mmu.VA, writable bool) defs.Err_t {
	return t.AllocUninit(va, writable, nil)
}

// evictAdapter lets a *Page satisfy frame.Page without vmspt exposing
// its own evict method to unrelated callers.
type evictAdapter struct {
	page *Page
	mmu  mmu.Ops
}

func (e *evictAdapter) Evict() defs.Err_t { return e.page.evict(e.mmu) }

// Kill tears down every descriptor, writing back dirty file-backed
// pages and releasing frames (supplemental_page_table_kill), used on
// thread/process exit.
func (t *Table) Kill() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pages {
		if p.kva != nil {
			if p.kind == File && t.mmu.IsDirty(p.VA) {
				p.writeback()
			}
			t.mmu.Unmap(p.VA)
			t.frames.Put(p.pa)
		}
	}
	t.pages = nil
}

// CopyInto duplicates every descriptor from t into dst (fork's address
// space copy): non-resident descriptors are mirrored lazily — dst
// gets its own pending descriptor running the same initializer, or
// reading the same file range for a FILE page — while already-resident
// pages are claimed-and-copied immediately, giving the child an
// independent frame with identical contents (any mapping dst's page
// table already holds at that address, e.g. from mmu.Software.Clone,
// is replaced). This is the
// completed version of supplemental_page_table_copy, whose body is left
// as a TODO stub in the original source.
func (t *Table) CopyInto(dst *Table) defs.Err_t {
	t.mu.Lock()
	pages := make([]*Page, len(t.pages))
	copy(pages, t.pages)
	t.mu.Unlock()

	for _, p := range pages {
		if p.kva == nil && p.kind == Anon && p.hasSwap {
			// Evicted-to-swap before fork: claim it back in the parent
			// first so the resident branch below copies real contents
			// instead of handing the child a zero-filled mirror.
			if err := t.Claim(p.VA); err != 0 {
				return err
			}
		}
		if p.kva == nil {
			var err defs.Err_t
			if p.kind == File {
				err = dst.AllocFile(p.VA, p.Writable, p.file, p.fileOffset, p.fileLength)
			} else {
				err = dst.AllocUninit(p.VA, p.Writable, p.init)
			}
			if err != 0 {
				return err
			}
			continue
		}
		var err defs.Err_t
		if p.kind == File {
			err = dst.AllocFile(p.VA, p.Writable, p.file, p.fileOffset, p.fileLength)
		} else {
			err = dst.AllocAnon(p.VA, p.Writable)
		}
		if err != 0 {
			return err
		}
		// A cloned child page table still maps p.VA to the parent's
		// frame; drop that so Claim can install the child's own frame.
		dst.mmu.Unmap(p.VA)
		if err := dst.Claim(p.VA); err != 0 {
			return err
		}
		child := dst.Find(p.VA)
		copy(child.kva[:], p.kva[:])
	}
	return 0
}

// Snapshot returns every tracked descriptor, for tests and diagnostics.
func (t *Table) Snapshot() []*Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Page, len(t.pages))
	copy(out, t.pages)
	return out
}
