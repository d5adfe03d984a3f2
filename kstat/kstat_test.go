package kstat

import (
	"testing"
	"time"
)

func TestCounterIncAndAdd(t *testing.T) {
	prev := Enabled
	Enabled = true
	defer func() { Enabled = prev }()

	var c Counter_t
	c.Inc()
	c.Add(4)
	if got := c.Get(); got != 5 {
		t.Fatalf("Get() = %d, want 5", got)
	}
}

func TestCounterDisabledIgnoresUpdates(t *testing.T) {
	prev := Enabled
	Enabled = false
	defer func() { Enabled = prev }()

	var c Counter_t
	c.Inc()
	c.Add(10)
	if got := c.Get(); got != 0 {
		t.Fatalf("Get() with Enabled=false = %d, want 0", got)
	}
}

func TestCoreStringListsEveryCounter(t *testing.T) {
	var c Core
	c.Created.Add(3)
	c.PageFaults.Add(7)
	s := c.String()
	if !contains(s, "Created: 3") || !contains(s, "PageFaults: 7") {
		t.Fatalf("String() = %q, missing expected counter values", s)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestSnapshotProducesOneSampleAndLocationPerInput(t *testing.T) {
	samples := []ThreadSample{
		{Name: "proc0", Tid: 1, CPUNanos: 1000, SampleFreq: 3},
		{Name: "proc1", Tid: 2, CPUNanos: 2000, SampleFreq: 1},
	}
	p := Snapshot(samples, time.Unix(0, 0))

	if len(p.Sample) != 2 {
		t.Fatalf("len(Sample) = %d, want 2", len(p.Sample))
	}
	if len(p.Function) != 2 {
		t.Fatalf("len(Function) = %d, want 2 (one per distinct thread name)", len(p.Function))
	}
	if got := p.Sample[0].Value[0]; got != 1000 {
		t.Fatalf("first sample value = %d, want 1000", got)
	}
	if got := p.Sample[0].Label["tid"][0]; got != "1" {
		t.Fatalf("first sample tid label = %q, want \"1\"", got)
	}
}

func TestSnapshotSharesFunctionAcrossRepeatedNames(t *testing.T) {
	samples := []ThreadSample{
		{Name: "proc0", Tid: 1, CPUNanos: 500, SampleFreq: 1},
		{Name: "proc0", Tid: 1, CPUNanos: 500, SampleFreq: 1},
	}
	p := Snapshot(samples, time.Unix(0, 0))

	if len(p.Function) != 1 {
		t.Fatalf("len(Function) = %d, want 1 (samples share a name)", len(p.Function))
	}
	if len(p.Sample) != 2 {
		t.Fatalf("len(Sample) = %d, want 2", len(p.Sample))
	}
}
