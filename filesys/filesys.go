// Package filesys names the byte-oriented file contract the core
// assumes: a byte-oriented open/read/write/seek/length/close with an
// exclusive global mutex; the filesystem itself is out of scope. Store
// is a minimal in-memory implementation, grounded in the shape of a
// ufs.Ufs_t-style wrapper, sufficient to exercise mmap/munmap and the
// read/write syscalls in tests.
package filesys

import (
	"sync"

	"github.com/jwoo0122/pintos-core/defs"
)

// File is the operation set every open file descriptor's backing store
// must provide.
type File interface {
	Read(buf []byte) (int, defs.Err_t)
	Write(buf []byte) (int, defs.Err_t)
	Seek(pos int) defs.Err_t
	Tell() int
	Length() int
	Close() defs.Err_t
	// Reopen returns an independent handle onto the same underlying
	// bytes with its own cursor, as fork and mmap require (fd.Copyfd /
	// vm/file.c's file_reopen).
	Reopen() File
}

// AccessFilesys is the single coarse mutex every filesys_* call holds,
// named directly after access_filesys.
var AccessFilesys sync.Mutex

// Store is a trivial named-blob filesystem: every path maps to a single
// growable byte slice. Store's own mutex guards the path map inside
// Create/Remove/Open; the syscalls layer additionally holds
// AccessFilesys around every call, mirroring a single global lock
// rather than per-inode locking.
type Store struct {
	mu    sync.Mutex
	blobs map[string]*[]byte
}

// NewStore creates an empty in-memory filesystem.
func NewStore() *Store {
	return &Store{blobs: make(map[string]*[]byte)}
}

// Create makes an empty file at path sized to at least size bytes.
// It fails if a file already exists at path.
func (s *Store) Create(path string, size int) defs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[path]; ok {
		return defs.EINVAL
	}
	b := make([]byte, size)
	s.blobs[path] = &b
	return 0
}

// Remove deletes the file at path. Existing open handles keep their own
// reference to the backing slice (matching Unix unlink semantics) since
// Open returns a *fileHandle that closes over the slice pointer, not the
// map entry.
func (s *Store) Remove(path string) defs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[path]; !ok {
		return defs.ENOENT
	}
	delete(s.blobs, path)
	return 0
}

// Open returns a fresh handle with its own cursor onto the file at path.
func (s *Store) Open(path string) (File, defs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[path]
	if !ok {
		return nil, defs.ENOENT
	}
	return &fileHandle{blob: b}, 0
}

type fileHandle struct {
	mu     sync.Mutex
	blob   *[]byte
	cursor int
}

func (f *fileHandle) Read(buf []byte) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor >= len(*f.blob) {
		return 0, 0
	}
	n := copy(buf, (*f.blob)[f.cursor:])
	f.cursor += n
	return n, 0
}

func (f *fileHandle) Write(buf []byte) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := f.cursor + len(buf)
	if end > len(*f.blob) {
		grown := make([]byte, end)
		copy(grown, *f.blob)
		*f.blob = grown
	}
	n := copy((*f.blob)[f.cursor:end], buf)
	f.cursor += n
	return n, 0
}

func (f *fileHandle) Seek(pos int) defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pos < 0 {
		return defs.EINVAL
	}
	f.cursor = pos
	return 0
}

func (f *fileHandle) Tell() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

func (f *fileHandle) Length() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(*f.blob)
}

func (f *fileHandle) Close() defs.Err_t { return 0 }

func (f *fileHandle) Reopen() File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &fileHandle{blob: f.blob}
}
