//go:build amd64

package timer

const sourceName = "rdtsc"

// readTicks reads the time-stamp counter.
// Implemented in ticks_amd64.s
//
//go:noescape
func readTicks() uint64

// frequencyHz returns 0: the TSC has no architectural frequency register, so
// the frequency is calibrated against the wall clock on first use.
func frequencyHz() uint64 {
	return 0
}
