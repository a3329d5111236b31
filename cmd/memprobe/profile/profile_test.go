package profile

import (
	"bytes"
	"strings"
	"testing"
)

func TestTimerAccumulates(t *testing.T) {
	tm := NewTimer("work")

	tm.Start()
	busy()
	tm.Stop()
	first := tm.Elapsed()
	if first <= 0 {
		t.Fatalf("elapsed after one section = %d, want > 0", first)
	}

	tm.Start()
	busy()
	tm.Stop()
	if tm.Elapsed() <= first {
		t.Fatalf("elapsed did not grow: %d -> %d", first, tm.Elapsed())
	}
}

func TestProfilerReport(t *testing.T) {
	var p Profiler

	p.Start("read")
	busy()
	p.Stop("read")

	p.Start("sum")
	busy()
	p.Stop("sum")

	// Same name accumulates into the same block.
	p.Start("read")
	busy()
	p.Stop("read")

	var buf bytes.Buffer
	p.Report(&buf)

	out := buf.String()
	for _, want := range []string{"Total time:", "read:", "sum:", "%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestStopWithoutStartPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Stop on an unknown block did not panic")
		}
	}()

	var p Profiler
	p.Stop("nope")
}

func TestReset(t *testing.T) {
	var p Profiler
	p.Start("a")
	p.Stop("a")
	p.Reset()

	var buf bytes.Buffer
	p.Report(&buf)
	if strings.Contains(buf.String(), "a:") {
		t.Fatalf("report still lists a reset block:\n%s", buf.String())
	}
}

func busy() {
	x := 0
	for i := 0; i < 10_000; i++ {
		x += i
	}
	sink = x
}

var sink int
