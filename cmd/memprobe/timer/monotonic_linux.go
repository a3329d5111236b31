//go:build linux

package timer

import (
	"log"

	"golang.org/x/sys/unix"
)

// MonotonicNs returns CLOCK_MONOTONIC in nanoseconds.
func MonotonicNs() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		log.Fatalf("getting monotonic clock: %v", err)
	}
	return uint64(ts.Sec*1e9 + ts.Nsec)
}
