// Package defs holds identifiers and error codes shared across the
// scheduler and virtual-memory packages, mirroring a small defs
// package (device numbers, Err_t-shaped codes).
package defs

// Tid_t identifies a thread. TidError is returned in place of a valid tid
// when thread creation or lookup fails.
type Tid_t int

// TidError is the sentinel tid returned on failure.
const TidError Tid_t = -1

// Err_t is a small negative-int error code, the shape used throughout
// this core's packages (e.g. fd.Copyfd's defs.Err_t return).
type Err_t int

// Named error sentinels. Zero means success.
const (
	EFAULT     Err_t = -1 /// bad user pointer
	ENOMEM     Err_t = -2 /// out of memory / frames
	ENOENT     Err_t = -3 /// no such file
	EINVAL     Err_t = -4 /// invalid argument
	ECHILD     Err_t = -5 /// no such child
	EMFILE     Err_t = -6 /// file descriptor table full
	EBADF      Err_t = -7 /// bad file descriptor
	ENOOVERLAP Err_t = -8 /// mapping already present at address
)

// Error implements the error interface so Err_t can be wrapped or
// compared the way ordinary Go errors are, without forcing the rest of
// the core to abandon its int-code convention.
func (e Err_t) Error() string {
	switch e {
	case 0:
		return "success"
	case EFAULT:
		return "bad user pointer"
	case ENOMEM:
		return "out of memory"
	case ENOENT:
		return "no such file"
	case EINVAL:
		return "invalid argument"
	case ECHILD:
		return "no such child"
	case EMFILE:
		return "descriptor table full"
	case EBADF:
		return "bad descriptor"
	case ENOOVERLAP:
		return "address already mapped"
	default:
		return "unknown error"
	}
}

// OK reports whether e represents success.
func (e Err_t) OK() bool { return e == 0 }

// Priority bounds from threads/thread.h.
const (
	PriMin     = 0
	PriDefault = 31
	PriMax     = 63
)

// Niceness bounds for the MLFQ policy.
const (
	NiceMin = -20
	NiceMax = 20
)
