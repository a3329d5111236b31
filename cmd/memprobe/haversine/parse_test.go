package haversine

import (
	"testing"
)

func TestParseDocument(t *testing.T) {
	doc := `{
    "pairs": [
      {"x0": 1.5, "y0": -2, "x1": 3e1, "y1": 0.25}
    ],
    "label": "test",
    "uniform": true,
    "note": null
  }`

	v, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Kind() != Object {
		t.Fatalf("kind = %v, want Object", v.Kind())
	}

	pairs, ok := v.Member("pairs")
	if !ok || pairs.Kind() != Array {
		t.Fatalf("pairs member missing or not an array")
	}
	if len(pairs.Elements()) != 1 {
		t.Fatalf("pairs has %d elements, want 1", len(pairs.Elements()))
	}

	pair := pairs.Elements()[0]
	for key, want := range map[string]float64{"x0": 1.5, "y0": -2, "x1": 30, "y1": 0.25} {
		m, ok := pair.Member(key)
		if !ok {
			t.Fatalf("pair missing %q", key)
		}
		if m.Kind() != Number || m.Num() != want {
			t.Errorf("%s = %v (kind %v), want %v", key, m.Num(), m.Kind(), want)
		}
	}

	if label, _ := v.Member("label"); label.Str() != "test" {
		t.Errorf("label = %q, want \"test\"", label.Str())
	}
	if uniform, _ := v.Member("uniform"); !uniform.Bool() {
		t.Error("uniform = false, want true")
	}
	if note, _ := v.Member("note"); note.Kind() != Null {
		t.Errorf("note kind = %v, want Null", note.Kind())
	}
}

func TestParseEmptyContainers(t *testing.T) {
	v, err := Parse([]byte(`{"a": [], "b": {}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	a, _ := v.Member("a")
	if a.Kind() != Array || len(a.Elements()) != 0 {
		t.Errorf("a is not an empty array")
	}
	b, _ := v.Member("b")
	if b.Kind() != Object {
		t.Errorf("b is not an object")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "bare garbage", input: "x"},
		{name: "unterminated object", input: `{"a": 1`},
		{name: "unterminated array", input: `[1, 2`},
		{name: "unterminated string", input: `"abc`},
		{name: "missing colon", input: `{"a" 1}`},
		{name: "trailing data", input: `{} {}`},
		{name: "bad literal", input: `nul`},
		{name: "bad number", input: `1.2.3`},
		{name: "escape unsupported", input: `"a\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.input)); err == nil {
				t.Errorf("Parse(%q) succeeded", tt.input)
			}
		})
	}
}

func TestMemberMissing(t *testing.T) {
	v, err := Parse([]byte(`{"a": 1}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := v.Member("b"); ok {
		t.Error("found a member that does not exist")
	}
}
