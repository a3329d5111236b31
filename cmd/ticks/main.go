// Command ticks prints the current value of the hardware tick counter.
package main

import (
	"fmt"
	"io"
	"os"

	"go.velmi.io/memprobe/cmd/memprobe/timer"
)

func main() {
	run(os.Stdout)
}

func run(w io.Writer) {
	fmt.Fprintf(w, "Time is %d\n", timer.Ticks())
}
