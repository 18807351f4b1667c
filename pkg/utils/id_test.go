package utils

import (
	"strings"
	"testing"
)

func TestNewIDShapeAndUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewID("msg")
		if !strings.HasPrefix(id, "msg_") {
			t.Fatalf("missing prefix: %q", id)
		}
		if strings.Contains(id, ":") {
			t.Fatalf("id contains reserved separator: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %q", id)
		}
		seen[id] = true
	}
}
