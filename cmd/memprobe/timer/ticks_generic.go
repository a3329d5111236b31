//go:build !amd64 && !arm64

package timer

import "time"

const sourceName = "time.Now"

// genericEpoch is the reference point for tick values on platforms without
// assembly support.
var genericEpoch = time.Now()

// readTicks returns nanoseconds since process start.
func readTicks() uint64 {
	return uint64(time.Since(genericEpoch).Nanoseconds())
}

// frequencyHz is 1 GHz: ticks are nanoseconds here.
func frequencyHz() uint64 {
	return 1_000_000_000
}
