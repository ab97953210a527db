package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clk := NewFake(start)

	if !clk.Now().Equal(start) {
		t.Fatalf("expected %s, got %s", start, clk.Now())
	}

	clk.Advance(90 * time.Second)
	if !clk.Now().Equal(start.Add(90 * time.Second)) {
		t.Fatalf("advance failed: %s", clk.Now())
	}

	clk.Advance(-2 * time.Minute)
	if !clk.Now().Equal(start.Add(-30 * time.Second)) {
		t.Fatalf("regression failed: %s", clk.Now())
	}
}

func TestRealTracksSystemClock(t *testing.T) {
	before := time.Now()
	got := Real{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Fatalf("Real.Now out of range: %s", got)
	}
}
