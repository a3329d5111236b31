package haversine

import (
	"bytes"
	"math"
	"testing"
)

func TestDistanceKnownValues(t *testing.T) {
	tests := []struct {
		name           string
		x0, y0, x1, y1 float64
		want           float64
	}{
		{name: "same point", x0: 12.5, y0: -33.0, x1: 12.5, y1: -33.0, want: 0},
		{name: "quarter meridian", x0: 0, y0: 0, x1: 0, y1: 90, want: EarthRadius * math.Pi / 2},
		{name: "quarter equator", x0: 0, y0: 0, x1: 90, y1: 0, want: EarthRadius * math.Pi / 2},
		{name: "antipodes", x0: 0, y0: 0, x1: 180, y1: 0, want: EarthRadius * math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.x0, tt.y0, tt.x1, tt.y1)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance(%v, %v, %v, %v) = %v, want %v",
					tt.x0, tt.y0, tt.x1, tt.y1, got, tt.want)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	ab := Distance(10, 20, -70, 45)
	ba := Distance(-70, 45, 10, 20)
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestGenerateThenAverageMatchesReference(t *testing.T) {
	for _, uniform := range []bool{true, false} {
		for _, samples := range []uint64{1, 100, 1000} {
			var buf bytes.Buffer
			want, err := Generate(&buf, uniform, samples)
			if err != nil {
				t.Fatalf("generate(uniform=%v, %d): %v", uniform, samples, err)
			}

			got, err := Average(buf.Bytes())
			if err != nil {
				t.Fatalf("average(uniform=%v, %d): %v", uniform, samples, err)
			}

			if math.Abs(got-want) > 1e-9 {
				t.Errorf("uniform=%v samples=%d: average %v, reference %v",
					uniform, samples, got, want)
			}
		}
	}
}

func TestGenerateZeroSamples(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Generate(&buf, true, 0); err == nil {
		t.Fatal("Generate accepted zero samples")
	}
}

func TestAverageRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "pairs"},
		{name: "no pairs key", input: `{"points": []}`},
		{name: "pairs not array", input: `{"pairs": 3}`},
		{name: "empty pairs", input: `{"pairs": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Average([]byte(tt.input)); err == nil {
				t.Errorf("Average(%q) succeeded", tt.input)
			}
		})
	}
}

func BenchmarkAverage(b *testing.B) {
	var buf bytes.Buffer
	if _, err := Generate(&buf, true, 10_000); err != nil {
		b.Fatalf("generate: %v", err)
	}
	data := buf.Bytes()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Average(data); err != nil {
			b.Fatalf("average: %v", err)
		}
	}
}
