package sched

import (
	"sort"

	"github.com/jwoo0122/pintos-core/defs"
	"github.com/jwoo0122/pintos-core/fixedpoint"
)

// calcMLFQPriority implements the MLFQ priority formula:
//
//	priority = PRI_MAX - (recent_cpu / 4) - (nice * 2)
//
// clamped to [PriMin, PriMax], matching thread.h's thread_get_priority
// under -o mlfqs.
func calcMLFQPriority(t *Thread_t) int {
	cpuTerm := fixedpoint.ToIntNearest(fixedpoint.DivInt(t.recentCPU, 4))
	p := defs.PriMax - cpuTerm - t.niceness*2
	if p < defs.PriMin {
		p = defs.PriMin
	}
	if p > defs.PriMax {
		p = defs.PriMax
	}
	return p
}

// recomputeAllPrioritiesLocked recalculates every thread's MLFQ
// priority (every 4th tick, and again whenever load_avg/recent_cpu are
// refreshed on the 1-second boundary) and re-sorts the ready queue to
// match, since priorities may have reordered it.
func (s *Sched_t) recomputeAllPrioritiesLocked() {
	for _, t := range s.all {
		t.priority = calcMLFQPriority(t)
	}
	sort.SliceStable(s.ready, func(i, j int) bool {
		return s.ready[i].priority > s.ready[j].priority
	})
}

// updateLoadAvgLocked recomputes the system load average once per
// second:
//
//	load_avg = (59/60)*load_avg + (1/60)*ready_count
//
// where ready_count includes the running thread unless the CPU is idle.
func (s *Sched_t) updateLoadAvgLocked() {
	readyCount := len(s.ready)
	if s.current != nil {
		readyCount++
	}
	fiftyNine60ths := fixedpoint.Div(fixedpoint.FromInt(59), fixedpoint.FromInt(60))
	one60th := fixedpoint.Div(fixedpoint.FromInt(1), fixedpoint.FromInt(60))
	s.loadAvg = fixedpoint.Add(
		fixedpoint.Mul(fiftyNine60ths, s.loadAvg),
		fixedpoint.MulInt(one60th, readyCount),
	)
}

// updateAllRecentCPULocked recomputes every thread's recent_cpu once
// per second:
//
//	recent_cpu = (2*load_avg)/(2*load_avg+1) * recent_cpu + nice
func (s *Sched_t) updateAllRecentCPULocked() {
	twoLoad := fixedpoint.MulInt(s.loadAvg, 2)
	coeff := fixedpoint.Div(twoLoad, fixedpoint.AddInt(twoLoad, 1))
	for _, t := range s.all {
		t.recentCPU = fixedpoint.AddInt(fixedpoint.Mul(coeff, t.recentCPU), t.niceness)
	}
}
