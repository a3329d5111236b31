package main

import (
	"bytes"
	"testing"
)

func TestRunSucceedsSilently(t *testing.T) {
	var buf bytes.Buffer
	if err := run(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output on success, got %q", buf.String())
	}
}
