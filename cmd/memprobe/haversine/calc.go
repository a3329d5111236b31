// Package haversine generates, parses and averages great-circle distance
// inputs. It is the toolkit's realistic parse/compute workload: a JSON
// document of coordinate pairs large enough to make memory behavior visible.
package haversine

import (
	"fmt"
	"math"
	"os"

	"go.velmi.io/memprobe/cmd/memprobe/profile"
)

// EarthRadius is the sphere radius used by the distance formula, in km.
const EarthRadius = 6372.8

// Distance returns the haversine distance between (x0,y0) and (x1,y1), where
// x is longitude and y latitude in degrees.
func Distance(x0, y0, x1, y1 float64) float64 {
	dLat := radians(y1 - y0)
	dLon := radians(x1 - x0)
	lat1 := radians(y0)
	lat2 := radians(y1)

	a := square(math.Sin(dLat/2)) + math.Cos(lat1)*math.Cos(lat2)*square(math.Sin(dLon/2))
	c := 2 * math.Asin(math.Sqrt(a))

	return c * EarthRadius
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func square(x float64) float64 {
	return x * x
}

// Average parses a pairs document and returns the mean distance over all
// pairs. The Parse and Sum phases run under profile blocks.
func Average(data []byte) (float64, error) {
	profile.Start("Parse")
	doc, err := Parse(data)
	profile.Stop("Parse")
	if err != nil {
		return 0, fmt.Errorf("parse input: %w", err)
	}

	pairs, ok := doc.Member("pairs")
	if !ok || pairs.Kind() != Array {
		return 0, fmt.Errorf("input has no \"pairs\" array")
	}
	if len(pairs.Elements()) == 0 {
		return 0, fmt.Errorf("input has no pairs")
	}

	var sum float64
	profile.Start("Sum")
	for _, pair := range pairs.Elements() {
		x0, _ := pair.Member("x0")
		y0, _ := pair.Member("y0")
		x1, _ := pair.Member("x1")
		y1, _ := pair.Member("y1")

		sum += Distance(x0.Num(), y0.Num(), x1.Num(), y1.Num())
	}
	profile.Stop("Sum")

	return sum / float64(len(pairs.Elements())), nil
}

// AverageFile reads a pairs document from disk and averages it, returning the
// input size alongside the mean.
func AverageFile(path string) (int, float64, error) {
	profile.Start("Read")
	data, err := os.ReadFile(path)
	profile.Stop("Read")
	if err != nil {
		return 0, 0, fmt.Errorf("read input: %w", err)
	}

	avg, err := Average(data)
	if err != nil {
		return 0, 0, err
	}
	return len(data), avg, nil
}
