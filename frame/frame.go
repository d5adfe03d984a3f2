// Package frame is the global frame table: the pool of physical frames
// backing resident user pages, plus FIFO eviction when the pool is
// exhausted, grounded in a Physmem_t-style free-list allocator
// (mem/mem.go) and in vm.c's vm_get_frame/vm_evict_frame.
//
// Table is injectable: vmspt depends on the Table interface, not a
// concrete struct, so tests can swap in a tiny fixed-capacity table to
// force eviction deterministically without allocating real memory
// pressure.
package frame

import (
	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/memcore"
)

// Page is implemented by whatever owns the contents of a resident
// frame (vmspt's page descriptor) so the frame table can evict it
// without importing vmspt — Evict must write the page out if dirty and
// file-backed, then clear its owner's mapping, per vm_evict_frame.
type Page interface {
	Evict() defs.Err_t
}

// Table is the frame-table contract vmspt's allocator uses.
type Table interface {
	// Get returns a resident frame for owner, evicting the
	// least-recently-installed occupant via FIFO if the pool is full.
	// It fails if eviction fails or if the pool has no page to hand
	// out.
	Get(owner Page) (memcore.Pa_t, *memcore.Page, defs.Err_t)
	// Put returns frame to the pool without eviction (owner is giving
	// it up voluntarily, e.g. on munmap or process exit).
	Put(pa memcore.Pa_t)
}

type slot struct {
	pa    memcore.Pa_t
	owner Page
}

// FIFO is the frame table: a fixed-capacity pool plus an ordered
// occupancy list so eviction always picks the frame that has been
// resident longest.
type FIFO struct {
	pool     memcore.Pool
	occupied []*slot
	capacity int
}

// NewFIFO creates a frame table drawing frames from pool, evicting once
// capacity resident frames are in use.
func NewFIFO(pool memcore.Pool, capacity int) *FIFO {
	return &FIFO{pool: pool, capacity: capacity}
}

func (f *FIFO) Get(owner Page) (memcore.Pa_t, *memcore.Page, defs.Err_t) {
	if len(f.occupied) >= f.capacity {
		if err := f.evictOldest(); err != 0 {
			return 0, nil, err
		}
	}
	pa, pg, ok := f.pool.Alloc()
	if !ok {
		return 0, nil, defs.ENOMEM
	}
	f.occupied = append(f.occupied, &slot{pa: pa, owner: owner})
	return pa, pg, 0
}

func (f *FIFO) Put(pa memcore.Pa_t) {
	for i, s := range f.occupied {
		if s.pa == pa {
			f.occupied = append(f.occupied[:i], f.occupied[i+1:]...)
			break
		}
	}
	f.pool.Free(pa)
}

func (f *FIFO) evictOldest() defs.Err_t {
	if len(f.occupied) == 0 {
		return defs.ENOMEM
	}
	oldest := f.occupied[0]
	if err := oldest.owner.Evict(); err != 0 {
		return err
	}
	f.occupied = f.occupied[1:]
	f.pool.Free(oldest.pa)
	return 0
}

// InUse reports how many frames are currently resident, for tests and
// kstat reporting.
func (f *FIFO) InUse() int { return len(f.occupied) }
