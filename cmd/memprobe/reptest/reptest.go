// Package reptest runs a workload over and over for a fixed wall duration and
// keeps the best, worst and average trial. Repeating until the timings stop
// improving is how the probes separate steady-state cost from cold caches and
// first-touch page faults.
package reptest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"go.velmi.io/memprobe/cmd/memprobe/mem"
	"go.velmi.io/memprobe/cmd/memprobe/timer"
)

// Metrics holds one trial's counters. Ticks and PageFaults are signed so that
// BeginTrial can subtract the starting reading and EndTrial add the ending
// one.
type Metrics struct {
	Ticks      int64
	Bytes      int64
	PageFaults int64
	Trials     uint32
}

// Results accumulates trial metrics over a full run.
type Results struct {
	Min   Metrics
	Max   Metrics
	Total Metrics
}

type state int

const (
	stateIdle state = iota
	stateTesting
	stateDone
)

// Tester drives repeated trials of one workload.
type Tester struct {
	endTicks      uint64
	expectedBytes uint64
	cur           Metrics
	results       Results
	state         state
	err           error

	now    func() uint64
	faults func() uint64
	out    io.Writer
}

// New returns a Tester that runs trials until dur of wall time has passed.
// Each trial is expected to process expectedBytes; a trial that processes a
// different amount poisons the run (see Err). Progress is written to out;
// pass io.Discard to silence it.
func New(dur time.Duration, expectedBytes uint64, out io.Writer) *Tester {
	if out == nil {
		out = os.Stdout
	}
	return newTester(dur, expectedBytes, timer.Ticks, timer.FromDuration, mem.PageFaults, out)
}

func newTester(dur time.Duration, expectedBytes uint64, now func() uint64, fromDur func(time.Duration) uint64, faults func() uint64, out io.Writer) *Tester {
	return &Tester{
		endTicks:      now() + fromDur(dur),
		expectedBytes: expectedBytes,
		results: Results{
			Min: Metrics{
				Ticks:      int64(^uint64(0) >> 1),
				Bytes:      int64(^uint64(0) >> 1),
				PageFaults: int64(^uint64(0) >> 1),
			},
		},
		now:    now,
		faults: faults,
		out:    out,
	}
}

// Run reports whether another trial should execute. It folds the previous
// trial into the results, so the caller's loop body is exactly one trial:
//
//	for tester.Run() {
//		tester.BeginTrial()
//		... timed work ...
//		tester.EndTrial()
//		tester.CountBytes(n)
//	}
func (t *Tester) Run() bool {
	if t.state == stateTesting {
		t.results.Total.Bytes += t.cur.Bytes
		t.results.Total.Ticks += t.cur.Ticks
		t.results.Total.PageFaults += t.cur.PageFaults

		if t.cur.Ticks > t.results.Max.Ticks {
			t.results.Max = t.cur
		}
		if t.cur.Ticks < t.results.Min.Ticks {
			t.results.Min = t.cur
		}

		if uint64(t.cur.Bytes) != t.expectedBytes && t.err == nil {
			t.err = fmt.Errorf("trial processed %d bytes, expected %d", t.cur.Bytes, t.expectedBytes)
		}
	}

	if t.now() >= t.endTicks {
		t.state = stateDone

		if t.results.Total.Trials == 0 {
			// No trial ever completed; drop the min sentinel.
			t.results.Min = Metrics{}
		}

		fmt.Fprintf(t.out, "\r%*s\r", 90, "")
		t.results.Min.writeResult(t.out, "Min")
		fmt.Fprintln(t.out)
		t.results.Max.writeResult(t.out, "Max")
		fmt.Fprintln(t.out)
		t.results.Total.writeResult(t.out, "Avg")
		fmt.Fprintln(t.out)

		return false
	}

	if t.state == stateTesting {
		fmt.Fprintf(t.out, "\r%*s\r", 90, "")
		fmt.Fprintf(t.out, "Trial %d: ", t.results.Total.Trials)
		t.results.Min.writeResult(t.out, "Min")
	}

	t.results.Total.Trials++
	t.cur = Metrics{}
	t.state = stateTesting

	return true
}

// BeginTrial starts the timed section of the current trial.
func (t *Tester) BeginTrial() {
	t.cur.Ticks -= int64(t.now())
	t.cur.PageFaults -= int64(t.faults())
}

// EndTrial ends the timed section of the current trial.
func (t *Tester) EndTrial() {
	t.cur.Ticks += int64(t.now())
	t.cur.PageFaults += int64(t.faults())
}

// CountBytes records work done by the current trial.
func (t *Tester) CountBytes(n uint64) {
	t.cur.Bytes += int64(n)
}

// Current returns the in-progress trial's metrics. Only meaningful after
// EndTrial, before the next Run call folds them into the results.
func (t *Tester) Current() Metrics {
	return t.cur
}

// Results returns the accumulated run results.
func (t *Tester) Results() Results {
	return t.results
}

// Err reports the first trial whose byte count differed from the expected
// amount, or nil.
func (t *Tester) Err() error {
	return t.err
}

func (m Metrics) writeResult(w io.Writer, label string) {
	divisor := float64(m.Trials)
	if divisor == 0 {
		divisor = 1
	}

	elapsedTicks := uint64(float64(m.Ticks) / divisor)
	elapsed := timer.ToDuration(elapsedTicks)
	bytesProcessed := float64(m.Bytes) / divisor
	pageFaults := float64(m.PageFaults) / divisor

	fmt.Fprintf(w, "%s time %09.4fms", label, elapsed.Seconds()*1_000)

	if bytesProcessed > 0 {
		const gb = 1 << 30
		fmt.Fprintf(w, ", %s %.2fgb/s",
			humanize.IBytes(uint64(bytesProcessed)),
			bytesProcessed/gb/elapsed.Seconds())
	}

	if pageFaults > 0 {
		const kb = 1 << 10
		fmt.Fprintf(w, ", PF: %.4f (%.4fk/fault)",
			pageFaults, bytesProcessed/(pageFaults*kb))
	}
}
