package timer

import (
	"testing"
	"time"
)

func TestTicksMonotonic(t *testing.T) {
	prev := Ticks()
	for i := 0; i < 1000; i++ {
		cur := Ticks()
		if cur < prev {
			t.Fatalf("tick counter went backwards: %d -> %d (iteration %d)", prev, cur, i)
		}
		prev = cur
	}
}

func TestFrequencyPositive(t *testing.T) {
	if f := Frequency(); f == 0 {
		t.Fatal("frequency is zero")
	}

	// Must be stable across calls.
	if a, b := Frequency(), Frequency(); a != b {
		t.Fatalf("frequency changed between calls: %d != %d", a, b)
	}
}

func TestTicksTrackWallClock(t *testing.T) {
	const testDur = 50 * time.Millisecond

	start := Ticks()
	t0 := time.Now()
	for time.Since(t0) < testDur {
	}
	elapsed := ToDuration(Ticks() - start)

	// Generous bounds: the busy loop overshoots and calibration on amd64 has
	// wall-clock error in it.
	if elapsed < testDur/2 || elapsed > testDur*4 {
		t.Fatalf("tick-derived duration %v too far from %v", elapsed, testDur)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{
		time.Millisecond,
		250 * time.Millisecond,
		time.Second,
		10 * time.Second,
	} {
		got := ToDuration(FromDuration(d))
		diff := got - d
		if diff < 0 {
			diff = -diff
		}
		// One tick of slop for coarse counters (24 MHz Apple Silicon ~ 42ns).
		if slop := ToDuration(1) + time.Nanosecond; diff > slop {
			t.Errorf("round trip of %v drifted by %v (limit %v)", d, diff, slop)
		}
	}
}

func TestMonotonicNs(t *testing.T) {
	a := MonotonicNs()
	b := MonotonicNs()
	if b < a {
		t.Fatalf("monotonic clock went backwards: %d -> %d", a, b)
	}
}

func BenchmarkTicks(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Ticks()
	}
}

func BenchmarkMonotonicNs(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = MonotonicNs()
	}
}
