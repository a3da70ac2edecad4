package api

import (
	"testing"
	"time"
)

func TestClientLimitersEvictIdleEntries(t *testing.T) {
	cl := newClientLimiters(1, 1, 20*time.Millisecond)

	cl.get("10.0.0.1")
	cl.get("10.0.0.2")
	if cl.size() != 2 {
		t.Fatalf("size = %d, want 2", cl.size())
	}

	time.Sleep(50 * time.Millisecond)

	// Lookup past the TTL sweeps the idle entries.
	cl.get("10.0.0.3")
	if cl.size() != 1 {
		t.Errorf("size = %d, want 1 after sweep", cl.size())
	}
}

func TestClientLimitersKeepActiveEntries(t *testing.T) {
	cl := newClientLimiters(1, 1, 60*time.Millisecond)

	cl.get("10.0.0.1")
	time.Sleep(40 * time.Millisecond)
	cl.get("10.0.0.1")
	time.Sleep(40 * time.Millisecond)

	// 10.0.0.1 was active within the TTL; the sweep must keep it and its
	// bucket state.
	l := cl.get("10.0.0.2")
	if cl.size() != 2 {
		t.Errorf("size = %d, want 2", cl.size())
	}
	if l == nil {
		t.Fatal("nil limiter")
	}
}
