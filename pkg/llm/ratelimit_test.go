package llm

import (
	"testing"
	"time"
)

func TestSlidingWindowAdmitsUpToLimit(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	w := newSlidingWindow(3, time.Minute)
	w.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, ok := w.tryAcquire(); !ok {
			t.Fatalf("request %d should have been admitted", i+1)
		}
	}
	wait, ok := w.tryAcquire()
	if ok {
		t.Fatalf("fourth request should have been throttled")
	}
	if wait <= 0 || wait > time.Minute {
		t.Fatalf("wait = %v, want within (0, 1m]", wait)
	}
}

func TestSlidingWindowExpiresOldTimestamps(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	w := newSlidingWindow(2, time.Minute)
	w.now = func() time.Time { return now }

	w.tryAcquire()
	w.tryAcquire()
	if _, ok := w.tryAcquire(); ok {
		t.Fatalf("window should be saturated")
	}

	now = now.Add(61 * time.Second)
	if _, ok := w.tryAcquire(); !ok {
		t.Fatalf("expired timestamps should free the window")
	}
}
