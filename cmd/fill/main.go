// Command fill allocates a one-mebibyte buffer, writes the repeating byte
// pattern 0..255 across it, and exits. It produces no output on success; a
// failed allocation reports a diagnostic and exits non-zero.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"go.velmi.io/memprobe/cmd/memprobe/mem"
)

func main() {
	log.SetPrefix("fill: ")
	log.SetFlags(0)

	if err := run(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run writes nothing to w on success; the buffer work is the whole job.
func run(w io.Writer) error {
	region, err := mem.Alloc(mem.FillSize)
	if err != nil {
		return fmt.Errorf("allocating buffer: %w", err)
	}
	defer region.Release()

	mem.Fill(region.Bytes())

	if err := mem.Verify(region.Bytes()); err != nil {
		return fmt.Errorf("verifying buffer: %w", err)
	}
	return nil
}
