// Package mmap implements lazy file-backed memory mapping, grounded
// directly in vm/file.c's do_mmap/do_munmap: mmap registers one
// FILE-kind supplemental page table entry per page up front without
// touching any frame, and munmap walks the mapped range writing back
// any page the hardware dirty bit marks as modified before dropping the
// mapping — the mapping never needs a backing swap slot for untouched
// pages.
package mmap

import (
	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/filesys"
	"github.com/jwoo0122/pintos-core/memcore"
	"github.com/jwoo0122/pintos-core/mmu"
	"github.com/jwoo0122/pintos-core/vmspt"
)

// fileAdapter narrows a filesys.File to vmspt.FileBacked's
// ReadAt/WriteAt shape, so each page names its own offset. Each call
// is a Seek followed by a Read or Write on the one reopened handle the
// mapping's pages share; the pair is not atomic.
type fileAdapter struct {
	f filesys.File
}

func (a *fileAdapter) ReadAt(buf []byte, offset int) (int, defs.Err_t) {
	if err := a.f.Seek(offset); err != 0 {
		return 0, err
	}
	return a.f.Read(buf)
}

func (a *fileAdapter) WriteAt(buf []byte, offset int) (int, defs.Err_t) {
	if err := a.f.Seek(offset); err != 0 {
		return 0, err
	}
	return a.f.Write(buf)
}

// Map registers a lazy mapping of length bytes of f (starting at
// offset) at addr, one FILE-kind page per PGSIZE chunk, returning
// ENOOVERLAP if any page of the range is already tracked (do_mmap,
// generalized from a single reopen to per-page registration the same
// way the original loops page by page). f is reopened once up front so
// the mapping survives the caller's fd being closed (do_mmap's
// file_reopen).
func Map(spt *vmspt.Table, addr mmu.VA, length int, writable bool, f filesys.File, offset int) defs.Err_t {
	reopened := f.Reopen()
	backing := &fileAdapter{f: reopened}

	readLength := length
	if fileLen := reopened.Length() - offset; fileLen < readLength {
		readLength = fileLen
	}
	if readLength < 0 {
		readLength = 0
	}

	va := addr
	off := offset
	remaining := readLength
	for remaining > 0 {
		chunk := remaining
		if chunk > memcore.PGSIZE {
			chunk = memcore.PGSIZE
		}
		if err := spt.AllocFile(va, writable, backing, off, chunk); err != 0 {
			unmapRange(spt, addr, va)
			return err
		}
		off += chunk
		va += mmu.VA(memcore.PGSIZE)
		remaining -= chunk
	}
	return 0
}

// Unmap walks the mapping starting at addr, writing back any
// hardware-dirty page to its backing file range and then dropping the
// page table entry, stopping at the first address with no tracked
// mapping (do_munmap).
func Unmap(spt *vmspt.Table, addr mmu.VA) {
	va := addr
	for {
		page := spt.Find(va)
		if page == nil {
			return
		}
		spt.Remove(va)
		va += mmu.VA(memcore.PGSIZE)
	}
}

// unmapRange tears down [from, to) after a partial Map failure, so a
// failed mmap never leaves orphaned pages behind.
func unmapRange(spt *vmspt.Table, from, to mmu.VA) {
	for va := from; va < to; va += mmu.VA(memcore.PGSIZE) {
		spt.Remove(va)
	}
}
