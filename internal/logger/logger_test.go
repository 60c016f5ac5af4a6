package logger

import "testing"

func TestGet_InitializesLazily(t *testing.T) {
	if Get() == nil {
		t.Fatal("expected a logger")
	}
	// A second Init is a no-op.
	Init("production")
	if Named("cache") == nil {
		t.Fatal("expected a named logger")
	}
	Sync()
}
