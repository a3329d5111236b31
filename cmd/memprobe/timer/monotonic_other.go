//go:build !linux

package timer

import "time"

var monotonicEpoch = time.Now()

// MonotonicNs returns monotonic nanoseconds since process start. On non-Linux
// platforms the Go runtime's monotonic clock stands in for CLOCK_MONOTONIC.
func MonotonicNs() uint64 {
	return uint64(time.Since(monotonicEpoch).Nanoseconds())
}
