package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"go.velmi.io/memprobe/cmd/memprobe/haversine"
	"go.velmi.io/memprobe/cmd/memprobe/mem"
	"go.velmi.io/memprobe/cmd/memprobe/profile"
	"go.velmi.io/memprobe/cmd/memprobe/reptest"
	"go.velmi.io/memprobe/cmd/memprobe/storage"
	"go.velmi.io/memprobe/cmd/memprobe/timer"
)

type workloadSpec struct {
	typ  storage.WorkloadType
	size uint64
}

func (ws workloadSpec) String() string {
	return fmt.Sprintf("%s:%d", storage.WorkloadName(ws.typ), ws.size)
}

// runWorkload repeats one workload under the repetition tester for dur,
// calling emit once per completed trial.
func runWorkload(ctx context.Context, ws workloadSpec, dur time.Duration, out io.Writer, emit func(*storage.Result)) error {
	switch ws.typ {
	case storage.WorkloadFill:
		return runFill(ctx, ws, dur, out, emit)
	case storage.WorkloadRead:
		return runRead(ctx, ws, dur, out, emit)
	case storage.WorkloadParse:
		return runParse(ctx, ws, dur, out, emit)
	case storage.WorkloadAlloc:
		return runAlloc(ctx, ws, dur, out, emit)
	default:
		return fmt.Errorf("unknown workload type %d", ws.typ)
	}
}

// runFill touches every byte of a reused buffer each trial. Steady-state
// store bandwidth: the region is mapped once, so page faults only show up on
// the first trial.
func runFill(ctx context.Context, ws workloadSpec, dur time.Duration, out io.Writer, emit func(*storage.Result)) error {
	region, err := mem.Alloc(int(ws.size))
	if err != nil {
		return fmt.Errorf("allocate fill buffer: %w", err)
	}
	defer region.Release()
	buf := region.Bytes()

	tester := reptest.New(dur, ws.size, out)
	var trial uint32
	for tester.Run() {
		if ctx.Err() != nil {
			break
		}

		tester.BeginTrial()
		mem.Fill(buf)
		tester.EndTrial()
		tester.CountBytes(uint64(len(buf)))

		emitTrial(tester, ws, trial, emit)
		trial++
	}
	if err := tester.Err(); err != nil {
		return err
	}

	// The fill must be observable, not optimizable-away.
	return mem.Verify(buf)
}

// runAlloc allocates, fills and releases a fresh region each trial, so every
// trial pays the first-touch page faults the fill workload amortizes away.
func runAlloc(ctx context.Context, ws workloadSpec, dur time.Duration, out io.Writer, emit func(*storage.Result)) error {
	tester := reptest.New(dur, ws.size, out)
	var trial uint32
	for tester.Run() {
		if ctx.Err() != nil {
			break
		}

		tester.BeginTrial()
		region, err := mem.Alloc(int(ws.size))
		if err != nil {
			return fmt.Errorf("allocate trial buffer: %w", err)
		}
		mem.Fill(region.Bytes())
		tester.EndTrial()
		tester.CountBytes(uint64(region.Len()))
		region.Release()

		emitTrial(tester, ws, trial, emit)
		trial++
	}
	return tester.Err()
}

// runRead streams a pattern file from disk into a preallocated buffer.
func runRead(ctx context.Context, ws workloadSpec, dur time.Duration, out io.Writer, emit func(*storage.Result)) error {
	f, err := os.CreateTemp("", "memprobe-read-*")
	if err != nil {
		return fmt.Errorf("create input file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	pattern := make([]byte, ws.size)
	mem.Fill(pattern)
	if _, err := f.Write(pattern); err != nil {
		return fmt.Errorf("write input file: %w", err)
	}

	buf := make([]byte, ws.size)
	tester := reptest.New(dur, ws.size, out)
	var trial uint32
	for tester.Run() {
		if ctx.Err() != nil {
			break
		}

		in, err := os.Open(f.Name())
		if err != nil {
			return fmt.Errorf("open input file: %w", err)
		}

		tester.BeginTrial()
		n, err := io.ReadFull(in, buf)
		tester.EndTrial()
		in.Close()
		if err != nil {
			return fmt.Errorf("read input file: %w", err)
		}
		tester.CountBytes(uint64(n))

		emitTrial(tester, ws, trial, emit)
		trial++
	}
	return tester.Err()
}

// runParse averages a generated haversine document each trial, with the
// block profiler splitting parse from sum time.
func runParse(ctx context.Context, ws workloadSpec, dur time.Duration, out io.Writer, emit func(*storage.Result)) error {
	// ~64 bytes per generated pair line
	samples := ws.size / 64
	if samples == 0 {
		samples = 1
	}

	var doc bytes.Buffer
	reference, err := haversine.Generate(&doc, true, samples)
	if err != nil {
		return fmt.Errorf("generate input: %w", err)
	}
	data := doc.Bytes()

	profile.Reset()

	tester := reptest.New(dur, uint64(len(data)), out)
	var trial uint32
	for tester.Run() {
		if ctx.Err() != nil {
			break
		}

		tester.BeginTrial()
		avg, err := haversine.Average(data)
		tester.EndTrial()
		if err != nil {
			return err
		}
		if math.Abs(avg-reference) > 1e-9 {
			return fmt.Errorf("average drifted: got %v, reference %v", avg, reference)
		}
		tester.CountBytes(uint64(len(data)))

		emitTrial(tester, ws, trial, emit)
		trial++
	}
	if err := tester.Err(); err != nil {
		return err
	}

	profile.Report(out)
	return nil
}

func emitTrial(tester *reptest.Tester, ws workloadSpec, trial uint32, emit func(*storage.Result)) {
	if emit == nil {
		return
	}
	cur := tester.Current()
	emit(&storage.Result{
		Timestamp:  timer.MonotonicNs(),
		Workload:   ws.typ,
		Trial:      trial,
		SizeBytes:  ws.size,
		Ticks:      uint64(cur.Ticks),
		Bytes:      uint64(cur.Bytes),
		PageFaults: uint64(cur.PageFaults),
	})
}
