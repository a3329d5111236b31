// Package mem owns the byte buffers the probes write through: allocation as
// an explicit operation that either yields an owned Region or fails, the
// canonical pattern fill, and process page-fault counts.
package mem

import (
	"errors"
	"fmt"
)

// FillSize is the canonical fill buffer size: 1 MiB.
const FillSize = 1 << 20

// ErrBadSize is returned by Alloc for non-positive sizes.
var ErrBadSize = errors.New("mem: region size must be positive")

// Region is an exclusively owned byte region. On Linux it is backed by an
// anonymous private mapping; elsewhere by the Go heap.
type Region struct {
	data   []byte
	mapped bool
}

// Alloc returns a zeroed Region of exactly size bytes, or an error. Callers
// must check the error before touching the region.
func Alloc(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	return alloc(size)
}

// Bytes returns the region's backing slice.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the region size in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Release returns the region's memory. The region must not be used after.
func (r *Region) Release() error {
	return r.release()
}

// Fill writes the repeating 0..255 pattern: dst[i] = byte(i).
func Fill(dst []byte) {
	for i := range dst {
		dst[i] = byte(i)
	}
}

// Verify checks that buf holds the Fill pattern, reporting the first
// mismatch. Reading the buffer back also keeps the fill's stores observable.
func Verify(buf []byte) error {
	for i, b := range buf {
		if b != byte(i) {
			return fmt.Errorf("mem: byte %d is 0x%02x, want 0x%02x", i, b, byte(i))
		}
	}
	return nil
}
