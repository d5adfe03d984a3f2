// Command coredemo wires every package in this module into one running
// system: a scheduler, a frame table sitting on a bounded physical pool,
// a handful of goroutine-backed "processes" each with their own address
// space, a shared in-memory filesystem, and a fork/wait pair — the way
// a kernel entry point wires proc, vm and fs together to launch init
// (the real boot sequence is itself out of scope: that entry point is
// assembly and CPU bring-up, so this harness starts from an
// already-running *sched.Sched_t instead).
//
// Each process runs demand paging (a tracked heap fault and a stack-
// growth fault through pagefault.Handle), touches the shared file
// through the syscalls surface, and the first process forks a child and
// waits on it. golang.org/x/sync/errgroup is the one place the demo
// genuinely waits on several concurrent "processes" at once, fanning out
// their completion channels and joining whichever one reports an error
// first.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwoo0122/pintos-core/bootargs"
	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/fdtable"
	"github.com/jwoo0122/pintos-core/filesys"
	"github.com/jwoo0122/pintos-core/frame"
	"github.com/jwoo0122/pintos-core/kstat"
	"github.com/jwoo0122/pintos-core/memcore"
	"github.com/jwoo0122/pintos-core/mmu"
	"github.com/jwoo0122/pintos-core/pagefault"
	"github.com/jwoo0122/pintos-core/sched"
	"github.com/jwoo0122/pintos-core/syscalls"
	"github.com/jwoo0122/pintos-core/vmspt"
)

const (
	demoFile   = "greeting.txt"
	demoFrames = 16
	demoProcs  = 4
)

// heapVA is the fixed address every process demand-pages its one heap
// page at; every process gets its own mmu.Software, so reusing the same
// virtual address across processes never collides.
const heapVA = mmu.VA(0x10000)

func main() {
	argv := os.Args[1:]
	cfg := bootargs.Parse(argv)
	profileOut := profileFlag(argv)

	s := sched.New(cfg)
	pool := memcore.NewHeapPool(0)
	frames := frame.NewFIFO(pool, demoFrames)

	store := filesys.NewStore()
	if err := store.Create(demoFile, 0); err != 0 {
		log.Fatalf("coredemo: create %s: %v", demoFile, err)
	}
	if err := seed(store); err != 0 {
		log.Fatalf("coredemo: seed %s: %v", demoFile, err)
	}

	var (
		sampleMu sync.Mutex
		samples  []kstat.ThreadSample
	)
	record := func(name string, tid defs.Tid_t, start time.Time) {
		sampleMu.Lock()
		samples = append(samples, kstat.ThreadSample{
			Name:       name,
			Tid:        int(tid),
			CPUNanos:   time.Since(start).Nanoseconds(),
			SampleFreq: 1,
		})
		sampleMu.Unlock()
	}

	g, _ := errgroup.WithContext(context.Background())

	// Every s.Create below runs before the first Start(), so none of
	// them can race a thread already occupying the CPU (sched.Launch's
	// preemption path is only safe from inside a running thread's own
	// body or before the scheduler has ever dispatched anyone).
	for i := 0; i < demoProcs; i++ {
		i := i
		done := make(chan int, 1)
		priority := defs.PriDefault + (i%3)*4

		s.Create(fmt.Sprintf("proc%d", i), priority, func(any) {
			start := time.Now()
			th := s.CurrentThread()
			status := runProcess(s, th, frames, store, i)
			record(th.Name, th.Tid, start)
			done <- status
			syscalls.Exit(s, th, status)
		}, nil)

		g.Go(func() error {
			if status := <-done; status != 0 {
				return fmt.Errorf("proc%d exited with status %d", i, status)
			}
			return nil
		})
	}

	s.Start()

	if err := g.Wait(); err != nil {
		log.Printf("coredemo: %v", err)
	}

	fmt.Print(s.Stats.String())
	if profileOut != "" {
		if err := writeProfile(samples, profileOut); err != nil {
			log.Printf("coredemo: profile: %v", err)
		}
	}
}

// runProcess is one demo process's entire body, run from inside its own
// thread: every process gets an independent mmu.Software and
// vmspt.Table backed by the shared frame pool. It returns the status
// this process should exit with instead of
// calling syscalls.Exit itself, since Exit never returns (runtime.
// Goexit) and the caller still needs to report completion and record a
// CPU sample first.
func runProcess(s *sched.Sched_t, th *sched.Thread_t, frames frame.Table, store *filesys.Store, idx int) int {
	th.MMU = mmu.NewSoftware()
	th.SPT = vmspt.New(frames, th.MMU)
	th.SPT.SetStats(&s.Stats)

	// A tracked heap page, demand-paged through the same fault path a
	// real #PF would take (the "tracked address" outcome).
	stamp := byte(idx + 1)
	if err := th.SPT.AllocUninit(heapVA, true, func(kva *memcore.Page) defs.Err_t {
		kva[0] = stamp
		return 0
	}); err != 0 {
		return 1
	}
	if outcome := pagefault.Handle(th.SPT, heapVA, pagefault.UserStackTop-32, false, true); outcome != pagefault.Resolved {
		return 1
	}
	if kva, _, ok := th.MMU.Translate(heapVA); !ok || kva[0] != stamp {
		return 1
	}

	// A fault just below the saved user stack pointer, demonstrating
	// the stack-growth heuristic rather than a tracked lookup.
	th.UserRSP = uintptr(pagefault.UserStackTop - 32)
	userRSP := mmu.VA(th.UserRSP)
	if outcome := pagefault.Handle(th.SPT, userRSP-8, userRSP, false, true); outcome != pagefault.StackGrown {
		return 1
	}

	fd := syscalls.Open(store, th, demoFile)
	if fd < 0 {
		return 1
	}
	buf := make([]byte, syscalls.Filesize(th, fd))
	if n := syscalls.Read(th, fd, buf); n != len(buf) {
		return 1
	}
	syscalls.Close(th, fd)

	syscalls.Write(th, fdtable.StdoutFd, []byte(fmt.Sprintf("proc%d read %q\n", idx, buf)), writeStdout)

	if idx == 0 {
		if status := forkAndWait(s, th, frames); status != 0 {
			return status
		}
	}

	return 0
}

// forkAndWait demonstrates fork: the child inherits proc0's address
// space and descriptor table, runs to completion on its own, and the
// parent blocks in sched.Wait until it has.
func forkAndWait(s *sched.Sched_t, parent *sched.Thread_t, frames frame.Table) int {
	childTid, err := syscalls.Fork(s, parent, frames, func(child *sched.Thread_t) {
		syscalls.Write(child, fdtable.StdoutFd, []byte("child of proc0 reporting in\n"), writeStdout)
		syscalls.Exit(s, child, 0)
	})
	if err != 0 {
		return 1
	}
	code := syscalls.Wait(parent, childTid)
	if code != 0 {
		return 1
	}
	return 0
}

func writeStdout(b []byte) { os.Stdout.Write(b) }

// profileFlag does a minimal two-token scan for "-profile PATH",
// matching bootargs.Parse's own "-o KEY VALUE" scanning style rather
// than reaching for the flag package for a single optional path.
func profileFlag(argv []string) string {
	for i, a := range argv {
		if a == "-profile" && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

func seed(store *filesys.Store) defs.Err_t {
	f, err := store.Open(demoFile)
	if err != 0 {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte("hello from coredemo\n"))
	return err
}

// writeProfile serializes the run's per-process CPU samples into a real
// pprof profile (kstat.Snapshot), giving the demo a concrete artifact
// instead of just printing kstat.Core's counters.
func writeProfile(samples []kstat.ThreadSample, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return kstat.Snapshot(samples, time.Now()).Write(f)
}
