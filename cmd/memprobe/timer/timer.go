// Package timer reads the platform's high-resolution tick counter and
// converts raw tick counts to and from wall durations.
//
// The counter is monotonic within a single host and boot, has no epoch
// guarantee and is not comparable across machines. On arm64 the counter
// frequency is architectural (CNTFRQ_EL0); on amd64 it is calibrated once
// against the wall clock.
package timer

import (
	"math/bits"
	"sync"
	"time"
)

var (
	freqOnce sync.Once
	freq     uint64
)

// Ticks returns the current raw tick count.
func Ticks() uint64 {
	return readTicks()
}

// Name returns the name of the tick source in use.
func Name() string {
	return sourceName
}

// Frequency returns the tick counter frequency in Hz. The first call may
// spend up to calibrateWindow measuring the counter against the wall clock
// on platforms without a frequency register.
func Frequency() uint64 {
	freqOnce.Do(func() {
		freq = frequencyHz()
		if freq == 0 {
			freq = calibrate(calibrateWindow)
		}
	})
	return freq
}

const calibrateWindow = 100 * time.Millisecond

func calibrate(window time.Duration) uint64 {
	start := readTicks()
	t0 := time.Now()
	for time.Since(t0) < window {
	}
	elapsed := readTicks() - start
	return uint64(float64(elapsed) / time.Since(t0).Seconds())
}

// ToDuration converts a raw tick delta to a wall duration.
func ToDuration(ticks uint64) time.Duration {
	hi, lo := bits.Mul64(ticks, uint64(time.Second))
	q, _ := bits.Div64(hi, lo, Frequency())
	return time.Duration(q)
}

// FromDuration converts a wall duration to the equivalent tick count.
func FromDuration(d time.Duration) uint64 {
	hi, lo := bits.Mul64(uint64(d.Nanoseconds()), Frequency())
	q, _ := bits.Div64(hi, lo, uint64(time.Second))
	return q
}
