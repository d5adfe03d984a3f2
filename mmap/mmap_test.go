package mmap

import (
	"testing"

	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/filesys"
	"github.com/jwoo0122/pintos-core/frame"
	"github.com/jwoo0122/pintos-core/memcore"
	"github.com/jwoo0122/pintos-core/mmu"
	"github.com/jwoo0122/pintos-core/vmspt"
)

func newFixture(t *testing.T, path string, contents string) (*vmspt.Table, *mmu.Software, filesys.File) {
	t.Helper()
	store := filesys.NewStore()
	if err := store.Create(path, len(contents)); err != 0 {
		t.Fatalf("Create: %v", err)
	}
	f, err := store.Open(path)
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	f.Write([]byte(contents))
	f.Seek(0)

	pool := memcore.NewHeapPool(0)
	frames := frame.NewFIFO(pool, 8)
	m := mmu.NewSoftware()
	return vmspt.New(frames, m), m, f
}

func TestMapRegistersOnePagePerChunk(t *testing.T) {
	contents := make([]byte, memcore.PGSIZE+100)
	for i := range contents {
		contents[i] = byte(i)
	}
	spt, _, f := newFixture(t, "big", string(contents))

	if err := Map(spt, 0x10000, len(contents), true, f, 0); err != 0 {
		t.Fatalf("Map: %v", err)
	}
	if spt.Find(0x10000) == nil {
		t.Fatalf("first page not registered")
	}
	if spt.Find(mmu.VA(0x10000 + memcore.PGSIZE)) == nil {
		t.Fatalf("second page not registered")
	}
}

func TestMapIsLazyUntilFault(t *testing.T) {
	spt, m, f := newFixture(t, "a", "hello")

	if err := Map(spt, 0x20000, 5, true, f, 0); err != 0 {
		t.Fatalf("Map: %v", err)
	}
	if _, _, ok := m.Translate(0x20000); ok {
		t.Fatalf("Map should not touch a frame before the page is claimed")
	}

	if err := spt.Claim(0x20000); err != 0 {
		t.Fatalf("Claim: %v", err)
	}
	if p := spt.Find(0x20000); p == nil || !p.Resident() {
		t.Fatalf("page should be resident after Claim")
	}
}

func TestMapReadsFileContentsOnClaim(t *testing.T) {
	spt, m, f := newFixture(t, "b", "contents-of-file")
	if err := Map(spt, 0x30000, len("contents-of-file"), true, f, 0); err != 0 {
		t.Fatalf("Map: %v", err)
	}
	if err := spt.Claim(0x30000); err != 0 {
		t.Fatalf("Claim: %v", err)
	}
	kva, _, ok := m.Translate(0x30000)
	if !ok || string(kva[:len("contents-of-file")]) != "contents-of-file" {
		t.Fatalf("claimed page does not hold the file's contents")
	}
}

func TestMapClampsLengthPastEndOfFile(t *testing.T) {
	spt, _, f := newFixture(t, "c", "short")
	// Ask for far more than the file contains; Map should clamp rather
	// than registering pages beyond EOF.
	if err := Map(spt, 0x40000, 10*memcore.PGSIZE, true, f, 0); err != 0 {
		t.Fatalf("Map: %v", err)
	}
	if spt.Find(mmu.VA(0x40000 + memcore.PGSIZE)) != nil {
		t.Fatalf("Map registered a second page for a file shorter than one page")
	}
}

func TestMapRejectsOverlapAndUnwindsPartialRegistration(t *testing.T) {
	contents := make([]byte, 2*memcore.PGSIZE)
	spt, _, f := newFixture(t, "d", string(contents))

	spt.AllocUninit(mmu.VA(0x50000+memcore.PGSIZE), true, nil)

	if err := Map(spt, 0x50000, len(contents), true, f, 0); err != defs.ENOOVERLAP {
		t.Fatalf("Map err = %v, want ENOOVERLAP", err)
	}
	if spt.Find(0x50000) != nil {
		t.Fatalf("first page should have been unwound after the second page's overlap failure")
	}
}

func TestUnmapWritesBackDirtyPages(t *testing.T) {
	spt, m, f := newFixture(t, "e", "0123456789")
	if err := Map(spt, 0x60000, 10, true, f, 0); err != 0 {
		t.Fatalf("Map: %v", err)
	}
	if err := spt.Claim(0x60000); err != 0 {
		t.Fatalf("Claim: %v", err)
	}

	// Mutate the resident frame directly (standing in for a user write)
	// and mark it dirty via mmu.SetDirty, the way a write fault handler
	// would, to exercise Unmap's writeback path.
	kva, _, ok := m.Translate(0x60000)
	if !ok {
		t.Fatalf("page not mapped after Claim")
	}
	copy(kva[:10], "XXXXXXXXXX")
	m.SetDirty(0x60000, true)

	Unmap(spt, 0x60000)
	if spt.Find(0x60000) != nil {
		t.Fatalf("page still tracked after Unmap")
	}

	f.Seek(0)
	buf := make([]byte, 10)
	f.Read(buf)
	if string(buf) != "XXXXXXXXXX" {
		t.Fatalf("file contents after dirty Unmap = %q, want the written-back mutation", buf)
	}
}

func TestUnmapSkipsWritebackWhenClean(t *testing.T) {
	spt, _, f := newFixture(t, "f", "0123456789")
	if err := Map(spt, 0x65000, 10, true, f, 0); err != 0 {
		t.Fatalf("Map: %v", err)
	}
	if err := spt.Claim(0x65000); err != 0 {
		t.Fatalf("Claim: %v", err)
	}

	Unmap(spt, 0x65000)

	f.Seek(0)
	buf := make([]byte, 10)
	f.Read(buf)
	if string(buf) != "0123456789" {
		t.Fatalf("file contents after clean Unmap = %q, want unchanged", buf)
	}
}

func TestUnmapStopsAtFirstUntrackedPage(t *testing.T) {
	spt, _, f := newFixture(t, "g", "hello")
	Map(spt, 0x70000, 5, true, f, 0)

	Unmap(spt, 0x70000)
	if spt.Find(0x70000) != nil {
		t.Fatalf("page still tracked after Unmap")
	}
	// A second Unmap on an already-unmapped address must not panic.
	Unmap(spt, 0x70000)
}
