// Package syscalls implements the numbered system-call surface: the
// handler logic syscall_handler dispatches to in userprog/syscall.c,
// with create/remove/open/filesize/read/seek/tell/close filled in here.
// The assembly trampoline, MSR setup, and interrupt-frame plumbing that
// gets a user `syscall` instruction into this handler logic are out of
// scope.
//
// Every handler takes the calling *sched.Thread_t explicitly rather
// than reading a package-global "current thread", since this core has
// no such global — the single-CPU assumption is represented by
// Sched_t, not a process-wide singleton.
package syscalls

import (
	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/fdtable"
	"github.com/jwoo0122/pintos-core/filesys"
	"github.com/jwoo0122/pintos-core/frame"
	"github.com/jwoo0122/pintos-core/memcore"
	"github.com/jwoo0122/pintos-core/mmu"
	"github.com/jwoo0122/pintos-core/procvm"
	"github.com/jwoo0122/pintos-core/sched"
)

// Halt stands in for stopping the system. The real power_off is a
// hardware operation out of scope here, so Halt does nothing and
// returns nothing.
func Halt() {}

// Exit records status as the caller's exit code and terminates it
// (syscall.c's exit(), generalized: the original prints and calls
// thread_exit unconditionally; process_exit's address-space teardown is
// folded in here via spt.Kill).
func Exit(s *sched.Sched_t, t *sched.Thread_t, status int) {
	if t.SPT != nil {
		t.SPT.Kill()
	}
	t.Fds.CloseAll()
	s.Exit(status)
}

// Fork duplicates the calling thread. resume is invoked in
// the child once its address space copy completes and must make the
// child's apparent fork() return value 0, the way __do_fork's intr_frame
// rax is forced to 0 before the child resumes user code.
func Fork(s *sched.Sched_t, parent *sched.Thread_t, frames frame.Table, resume func(child *sched.Thread_t)) (defs.Tid_t, defs.Err_t) {
	return procvm.Fork(s, parent, frames, resume)
}

// Exec is out of scope: loading and replacing an address space with a
// new executable needs an ELF loader and argument-stack setup that sit
// squarely on top of the bootloader/CPU bring-up and filesystem this
// core never implements. It always fails.
func Exec(_ string) defs.Err_t { return defs.EINVAL }

// Wait blocks until child tid exits and returns its exit status, or -1
// if tid never was (or already was) a waited-on child.
func Wait(parent *sched.Thread_t, tid defs.Tid_t) int {
	code, err := sched.Wait(parent, tid)
	if err != 0 {
		return -1
	}
	return code
}

// Create makes a new file of the given initial size.
func Create(store *filesys.Store, path string, size int) bool {
	filesys.AccessFilesys.Lock()
	defer filesys.AccessFilesys.Unlock()
	return store.Create(path, size) == 0
}

// Remove deletes the file at path.
func Remove(store *filesys.Store, path string) bool {
	filesys.AccessFilesys.Lock()
	defer filesys.AccessFilesys.Unlock()
	return store.Remove(path) == 0
}

// Open opens path and installs it in t's descriptor table, returning
// the new fd or -1.
func Open(store *filesys.Store, t *sched.Thread_t, path string) int {
	filesys.AccessFilesys.Lock()
	f, err := store.Open(path)
	filesys.AccessFilesys.Unlock()
	if err != 0 {
		return -1
	}
	return t.Fds.Install(f)
}

// Filesize returns the size of the file open at fd, or -1.
func Filesize(t *sched.Thread_t, fd int) int {
	h, err := t.Fds.Get(fd)
	if err != 0 {
		return -1
	}
	filesys.AccessFilesys.Lock()
	defer filesys.AccessFilesys.Unlock()
	return h.File.Length()
}

// Read reads up to len(buf) bytes from fd into buf, returning the count
// read or -1. fd 0 (stdin) is reserved and unsupported by this core's
// filesys contract; reading it fails.
func Read(t *sched.Thread_t, fd int, buf []byte) int {
	if fd == fdtable.StdinFd {
		return -1
	}
	h, err := t.Fds.Get(fd)
	if err != 0 {
		return -1
	}
	filesys.AccessFilesys.Lock()
	defer filesys.AccessFilesys.Unlock()
	n, rerr := h.File.Read(buf)
	if rerr != 0 {
		return -1
	}
	return n
}

// Write writes buf to fd (a stdout special case, generalized from
// syscall.c's write() which only handles STDOUT_FD) and returns the
// number of bytes written, or -1.
func Write(t *sched.Thread_t, fd int, buf []byte, stdout func([]byte)) int {
	if fd == fdtable.StdoutFd {
		stdout(buf)
		return len(buf)
	}
	h, err := t.Fds.Get(fd)
	if err != 0 {
		return -1
	}
	filesys.AccessFilesys.Lock()
	defer filesys.AccessFilesys.Unlock()
	n, werr := h.File.Write(buf)
	if werr != 0 {
		return -1
	}
	return n
}

// Seek repositions fd's cursor to pos.
func Seek(t *sched.Thread_t, fd int, pos int) {
	h, err := t.Fds.Get(fd)
	if err != 0 {
		return
	}
	filesys.AccessFilesys.Lock()
	defer filesys.AccessFilesys.Unlock()
	h.File.Seek(pos)
}

// Tell returns fd's current cursor position, or -1.
func Tell(t *sched.Thread_t, fd int) int {
	h, err := t.Fds.Get(fd)
	if err != 0 {
		return -1
	}
	filesys.AccessFilesys.Lock()
	defer filesys.AccessFilesys.Unlock()
	return h.File.Tell()
}

// Close closes fd in t's descriptor table.
func Close(t *sched.Thread_t, fd int) {
	t.Fds.Close(fd)
}

// ValidateUserPointer reports whether addr lies in user address space
// and is currently resolvable in t's address space, terminating the
// check the way syscall.c's user_memory_bound_check does for every
// pointer argument a syscall handler receives.
func ValidateUserPointer(t *sched.Thread_t, addr mmu.VA, isKernelAddr func(mmu.VA) bool) bool {
	if isKernelAddr(addr) || addr == 0 {
		return false
	}
	pageAddr := mmu.VA(memcore.RoundDown(uintptr(addr)))
	_, _, ok := t.MMU.Translate(pageAddr)
	if ok {
		return true
	}
	return t.SPT != nil && t.SPT.Find(pageAddr) != nil
}
