package id

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	if len(a) != 16 {
		t.Fatalf("len = %d: %q", len(a), a)
	}
	if a == b {
		t.Fatalf("collision: %q", a)
	}
}

func TestNewTest(t *testing.T) {
	id := NewTest()
	if !strings.HasPrefix(id, "test_") {
		t.Fatalf("id = %q", id)
	}
	if id == NewTest() {
		t.Fatalf("collision: %q", id)
	}
}
