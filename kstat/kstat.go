// Package kstat carries a stats/stats.go-style texture forward: gated
// atomic counters plus a reflection-based dump, extended with a
// Snapshot that serializes accumulated per-thread accounting into a
// real pprof profile instead of a raw rusage byte blob.
package kstat

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/pprof/profile"
)

// Enabled gates counter updates, the way stats.Stats/stats.Timing do;
// on by default, and switched off by tests that check a disabled
// counter ignores updates.
var Enabled = true

// Counter_t is a statistical counter, directly mirroring a
// stats.Counter_t.
type Counter_t int64

// Inc increments the counter if counting is enabled.
func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

// Add adds delta to the counter if counting is enabled.
func (c *Counter_t) Add(delta int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), delta)
	}
}

// Get reads the counter's current value regardless of Enabled.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// Core aggregates the scheduler and VM counters, tallied the way
// stats.go tallies Nirqs/Irqs. Within this module, sched updates
// Created and Exited and vmspt updates SwapIns and SwapOuts; no package
// here increments Preemptions, Donations, PageFaults, Evictions or
// StackGrowths, so those read zero unless a caller adds to them.
type Core struct {
	Created      Counter_t
	Exited       Counter_t
	Preemptions  Counter_t
	Donations    Counter_t
	PageFaults   Counter_t
	Evictions    Counter_t
	SwapIns      Counter_t
	SwapOuts     Counter_t
	StackGrowths Counter_t
}

// String renders every Counter_t field in Core via reflection, the way
// stats.Stats2String walks an arbitrary counter struct.
func (c *Core) String() string {
	v := reflect.ValueOf(c).Elem()
	var sb strings.Builder
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if ctr, ok := f.Addr().Interface().(*Counter_t); ok {
			sb.WriteString("\n\t#")
			sb.WriteString(v.Type().Field(i).Name)
			sb.WriteString(": ")
			sb.WriteString(strconv.FormatInt(ctr.Get(), 10))
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// ThreadSample is one thread's accumulated CPU time, the input to
// Snapshot.
type ThreadSample struct {
	Name       string
	Tid        int
	CPUNanos   int64
	SampleFreq int64 // ticks observed, i.e. sample count
}

// Snapshot serializes a set of per-thread CPU-time samples into a pprof
// profile.Profile, giving the accounting data a standard export format
// instead of an ad hoc rusage byte layout (accnt.To_rusage).
func Snapshot(samples []ThreadSample, now time.Time) *profile.Profile {
	cpuType := &profile.ValueType{Type: "cpu", Unit: "nanoseconds"}
	p := &profile.Profile{
		SampleType: []*profile.ValueType{cpuType},
		TimeNanos:  now.UnixNano(),
	}
	funcsByName := make(map[string]*profile.Function)
	nextID := uint64(1)
	for _, s := range samples {
		fn, ok := funcsByName[s.Name]
		if !ok {
			fn = &profile.Function{ID: nextID, Name: s.Name}
			nextID++
			funcsByName[s.Name] = fn
			p.Function = append(p.Function, fn)
		}
		loc := &profile.Location{
			ID:   nextID,
			Line: []profile.Line{{Function: fn}},
		}
		nextID++
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{s.CPUNanos},
			Label:    map[string][]string{"tid": {strconv.Itoa(s.Tid)}},
			NumLabel: map[string][]int64{"ticks": {s.SampleFreq}},
		})
	}
	return p
}
