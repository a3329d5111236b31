//go:build arm64

package timer

const sourceName = "cntvct_el0"

// readTicks reads the virtual counter (CNTVCT_EL0).
// Implemented in ticks_arm64.s
//
//go:noescape
func readTicks() uint64

// readFreq reads the counter frequency (CNTFRQ_EL0).
// Implemented in ticks_arm64.s
//
//go:noescape
func readFreq() uint64

// frequencyHz returns the architectural counter frequency. 24 MHz on Apple
// Silicon, typically 1 GHz elsewhere.
func frequencyHz() uint64 {
	return readFreq()
}
