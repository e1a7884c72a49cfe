package probe

import (
	"fmt"
	"sync"
	"testing"
)

func TestRingNewestFirst(t *testing.T) {
	ring := NewRing(10)
	ring.Record("bus", "show-1", "first")
	ring.Record("feed", "show-1", "second")

	report := ring.Report()
	if len(report) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(report))
	}
	if report[0].Message != "second" || report[1].Message != "first" {
		t.Fatalf("expected newest first, got %q then %q", report[0].Message, report[1].Message)
	}
}

func TestRingBounded(t *testing.T) {
	ring := NewRing(5)
	for i := 0; i < 20; i++ {
		ring.Record("bus", "show-1", fmt.Sprintf("event %d", i))
	}
	if ring.Len() != 5 {
		t.Fatalf("expected ring capped at 5, got %d", ring.Len())
	}
	if got := ring.Report()[0].Message; got != "event 19" {
		t.Fatalf("newest entry = %q, want event 19", got)
	}
}

func TestRingConcurrentWrites(t *testing.T) {
	ring := NewRing(32)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ring.Record("feed", "show-1", fmt.Sprintf("writer %d", n))
			}
		}(i)
	}
	wg.Wait()
	if ring.Len() != 32 {
		t.Fatalf("expected full ring of 32, got %d", ring.Len())
	}
}
