package llm

import (
	"context"
	"sync"
	"time"
)

// slidingWindow enforces a requests-per-minute cap as a sliding window
// over recent request timestamps: a caller awaiting a slot blocks until
// the oldest timestamp in the window ages out.
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
	now    func() time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Await blocks until a request slot is available, then records the
// request timestamp. Returns early only if ctx is canceled.
func (w *slidingWindow) Await(ctx context.Context) error {
	for {
		wait, ok := w.tryAcquire()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tryAcquire records a timestamp if the window has room, otherwise
// returns how long to wait for the oldest in-window timestamp to expire.
func (w *slidingWindow) tryAcquire() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	live := w.stamps[:0]
	for _, s := range w.stamps {
		if s.After(cutoff) {
			live = append(live, s)
		}
	}
	w.stamps = live

	if len(w.stamps) < w.limit {
		w.stamps = append(w.stamps, now)
		return 0, true
	}
	return w.stamps[0].Sub(cutoff), false
}
