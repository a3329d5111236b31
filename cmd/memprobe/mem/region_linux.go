//go:build linux

package mem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// alloc maps an anonymous private region. MAP_ANONYMOUS contents are zeroed
// by the kernel, and pages fault in on first touch, which is exactly what the
// fill probes want to observe.
func alloc(size int) (*Region, error) {
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	return &Region{data: data, mapped: true}, nil
}

func (r *Region) release() error {
	if !r.mapped {
		r.data = nil
		return nil
	}
	data := r.data
	r.data = nil
	r.mapped = false
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
