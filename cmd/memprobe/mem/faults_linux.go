//go:build linux

package mem

import "golang.org/x/sys/unix"

// PageFaults returns the process's cumulative minor+major fault count.
func PageFaults() uint64 {
	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		return 0
	}
	return uint64(usage.Minflt) + uint64(usage.Majflt)
}
