// Package profile is a tiny block profiler: named tick accumulators and a
// process-wide registry that reports each block's share of the total.
package profile

import (
	"fmt"
	"io"
	"sync"

	"go.velmi.io/memprobe/cmd/memprobe/timer"
)

const maxTimers = 16

// Timer accumulates ticks spent between Start and Stop calls.
type Timer struct {
	name     string
	sumDelta int64
}

// NewTimer returns a standalone named timer.
func NewTimer(name string) *Timer {
	return &Timer{name: name}
}

// Start marks the beginning of a timed section.
func (t *Timer) Start() {
	t.sumDelta -= int64(timer.Ticks())
}

// Stop marks the end of a timed section. Start/Stop pairs may repeat; the
// timer accumulates across them.
func (t *Timer) Stop() {
	t.sumDelta += int64(timer.Ticks())
}

// Elapsed returns the accumulated tick count.
func (t *Timer) Elapsed() int64 {
	return t.sumDelta
}

func (t *Timer) report(w io.Writer, total int64) {
	share := 0.0
	if total > 0 {
		share = 100 * float64(t.sumDelta) / float64(total)
	}
	fmt.Fprintf(w, "%s: %.4fms %d ticks (%.2f%%)\n",
		t.name,
		timer.ToDuration(uint64(t.sumDelta)).Seconds()*1_000,
		t.sumDelta,
		share)
}

// ReportStandalone prints the timer on its own, outside a registry total.
func (t *Timer) ReportStandalone(w io.Writer) {
	fmt.Fprintf(w, "%s: %.4fms %d ticks\n",
		t.name,
		timer.ToDuration(uint64(t.sumDelta)).Seconds()*1_000,
		t.sumDelta)
}

// Profiler is a registry of named block timers.
type Profiler struct {
	mu     sync.Mutex
	timers []*Timer
}

func (p *Profiler) get(name string) *Timer {
	for _, t := range p.timers {
		if t.name == name {
			return t
		}
	}
	if len(p.timers) >= maxTimers {
		panic(fmt.Sprintf("profile: more than %d block timers (adding %q)", maxTimers, name))
	}
	t := &Timer{name: name}
	p.timers = append(p.timers, t)
	return t
}

// Start starts (creating if needed) the named block timer.
func (p *Profiler) Start(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.get(name).Start()
}

// Stop stops the named block timer. Stopping an unknown name is a
// programming error and panics.
func (p *Profiler) Stop(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.timers {
		if t.name == name {
			t.Stop()
			return
		}
	}
	panic(fmt.Sprintf("profile: Stop(%q) without Start", name))
}

// Report writes every block's time, ticks and percentage of the total.
func (p *Profiler) Report(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var total int64
	for _, t := range p.timers {
		total += t.sumDelta
	}

	fmt.Fprintf(w, "Total time: %.4fms %d ticks (timer freq %d)\n",
		timer.ToDuration(uint64(total)).Seconds()*1_000,
		total,
		timer.Frequency())

	for _, t := range p.timers {
		t.report(w, total)
	}
}

// Reset drops all block timers.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timers = nil
}

var std Profiler

// Start starts a block timer in the process-wide profiler.
func Start(name string) { std.Start(name) }

// Stop stops a block timer in the process-wide profiler.
func Stop(name string) { std.Stop(name) }

// Report writes the process-wide profiler's blocks to w.
func Report(w io.Writer) { std.Report(w) }

// Reset clears the process-wide profiler, typically between runs.
func Reset() { std.Reset() }
