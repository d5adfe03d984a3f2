// Package fdtable is the per-process file descriptor table, grounded
// on fd.Fd_t / fd.Copyfd (fd/fd.go): a small struct wrapping the
// filesys.File operations interface, duplicated by reopening rather
// than refcounting, plus the minimum-unused-fd allocator and the fd
// 0/1 reservation.
package fdtable

import (
	"sync"

	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/filesys"
)

// Reserved standard descriptors: 0 and 1 are never handed out by
// Install, the way stdin/stdout are reserved in a Unix-like kernel.
const (
	StdinFd  = 0
	StdoutFd = 1
	minFd    = 2
)

// Fd_t is one open file descriptor (fd.Fd_t, generalized from an
// fdops.Fdops_i-style interface to the core's filesys.File contract).
type Fd_t struct {
	File filesys.File
}

// Table is a process's file descriptor table: a sparse map from fd
// number to Fd_t, with the lowest unused fd >= 2 handed out next.
type Table struct {
	mu    sync.Mutex
	files map[int]*Fd_t
}

// New creates an empty descriptor table.
func New() *Table {
	return &Table{files: make(map[int]*Fd_t)}
}

// Install inserts f under the lowest unused descriptor number >= 2 and
// returns it.
func (t *Table) Install(f filesys.File) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := minFd
	for {
		if _, taken := t.files[fd]; !taken {
			break
		}
		fd++
	}
	t.files[fd] = &Fd_t{File: f}
	return fd
}

// Get returns the Fd_t installed at fd, or (nil, EBADF).
func (t *Table) Get(fd int) (*Fd_t, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[fd]
	if !ok || fd == StdinFd || fd == StdoutFd {
		return nil, defs.EBADF
	}
	return f, 0
}

// Close removes and closes the descriptor at fd.
func (t *Table) Close(fd int) defs.Err_t {
	t.mu.Lock()
	f, ok := t.files[fd]
	if !ok {
		t.mu.Unlock()
		return defs.EBADF
	}
	delete(t.files, fd)
	t.mu.Unlock()
	return f.File.Close()
}

// CloseAll closes every open descriptor, used on thread/process exit.
func (t *Table) CloseAll() {
	t.mu.Lock()
	files := t.files
	t.files = make(map[int]*Fd_t)
	t.mu.Unlock()
	for _, f := range files {
		f.File.Close()
	}
}

// Copy duplicates every entry by reopening its backing file (fd.Copyfd),
// used by fork to give the child independent cursors onto the same
// open files.
func (t *Table) Copy() *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := New()
	for fd, f := range t.files {
		n.files[fd] = &Fd_t{File: f.File.Reopen()}
	}
	return n
}
