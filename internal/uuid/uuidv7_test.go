package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
)

func TestNew(t *testing.T) {
	id := New()
	parsed, err := googleuuid.Parse(id)
	if err != nil {
		t.Fatalf("expected valid uuid, got %q: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("expected version 7, got %d", parsed.Version())
	}
	if New() == id {
		t.Error("expected distinct ids")
	}
}

func TestDerived(t *testing.T) {
	a := Derived("recurring", "abc", "2025-06")
	b := Derived("recurring", "abc", "2025-06")
	c := Derived("recurring", "abc", "2025-07")

	if a != b {
		t.Errorf("expected stable id, got %s and %s", a, b)
	}
	if a == c {
		t.Error("expected different periods to yield different ids")
	}
	if !IsValid(a) {
		t.Errorf("expected valid uuid, got %q", a)
	}
}

func TestNew_TimeOrdered(t *testing.T) {
	a := New()
	b := New()
	if a >= b {
		t.Errorf("expected %s to sort before %s", a, b)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0190f8a1-0000-7000-8000-000000000001", true},
		{"{0190f8a1-0000-7000-8000-000000000001}", false},
		{"urn:uuid:0190f8a1-0000-7000-8000-000000000001", false},
		{"not-a-uuid", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsValid(tc.in); got != tc.want {
			t.Errorf("IsValid(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
