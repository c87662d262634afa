package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "v") {
		t.Errorf("String() = %q, want v prefix", s)
	}
	if strings.Count(s, ".") != 2 {
		t.Errorf("String() = %q, want three components", s)
	}
}

func TestFull(t *testing.T) {
	if !strings.Contains(Full(), "pqwire") {
		t.Errorf("Full() = %q, want pqwire mention", Full())
	}
	if !strings.Contains(Full(), String()) {
		t.Errorf("Full() = %q does not embed %q", Full(), String())
	}
}
