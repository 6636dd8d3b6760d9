// Package system exercises the real-time clock adapter.
package system

import (
	"testing"
	"time"
)

// TestClockNowUTC ensures the default clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestClockInLocation checks the configured zone is applied.
func TestClockInLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("MSK", 3*60*60)
	clk := NewInLocation(loc)
	if clk.Now().Location() != loc {
		t.Fatalf("expected %v, got %v", loc, clk.Now().Location())
	}
	if clk.Location() != loc {
		t.Fatalf("expected location accessor to return %v", loc)
	}
	if NewInLocation(nil).Location() != time.UTC {
		t.Fatal("expected nil location to fall back to UTC")
	}
}

// TestLoadLocationEmpty maps an empty name to UTC.
func TestLoadLocationEmpty(t *testing.T) {
	t.Parallel()

	loc, err := LoadLocation("")
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v (%v)", loc, err)
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
