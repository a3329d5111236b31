package haversine

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
)

const (
	xLowerBound = -180.0
	xUpperBound = 180.0

	yLowerBound = -90.0
	yUpperBound = 90.0
)

// Generate writes a pairs document with the given number of coordinate pairs
// and returns the reference average distance computed while generating.
// Uniform sampling covers the whole globe; otherwise pairs are drawn from one
// random cluster rectangle, which skews the distance distribution the way
// real geo data does.
func Generate(w io.Writer, uniform bool, samples uint64) (float64, error) {
	if samples == 0 {
		return 0, fmt.Errorf("samples must be positive")
	}

	bw := bufio.NewWriter(w)

	xa, xb := xLowerBound, xUpperBound
	ya, yb := yLowerBound, yUpperBound
	if !uniform {
		xa, xb = randRange(xLowerBound, xUpperBound), randRange(xLowerBound, xUpperBound)
		if xa > xb {
			xa, xb = xb, xa
		}
		ya, yb = randRange(yLowerBound, yUpperBound), randRange(yLowerBound, yUpperBound)
		if ya > yb {
			ya, yb = yb, ya
		}
	}

	if _, err := fmt.Fprintln(bw, "{"); err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintln(bw, `    "pairs": [`); err != nil {
		return 0, err
	}

	var sum float64
	for sample := uint64(0); sample < samples; sample++ {
		x0 := randRange(xa, xb)
		x1 := randRange(xa, xb)
		y0 := randRange(ya, yb)
		y1 := randRange(ya, yb)

		sep := ","
		if sample == samples-1 {
			sep = ""
		}
		if _, err := fmt.Fprintf(bw, "      {\"x0\": %v, \"y0\": %v, \"x1\": %v, \"y1\": %v}%s\n",
			x0, y0, x1, y1, sep); err != nil {
			return 0, err
		}

		sum += Distance(x0, y0, x1, y1)
	}

	if _, err := fmt.Fprintln(bw, "    ]"); err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintln(bw, "}"); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}

	return sum / float64(samples), nil
}

func randRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Float64()*(hi-lo)
}
