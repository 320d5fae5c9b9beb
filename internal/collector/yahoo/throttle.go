package yahoo

import (
	"context"
	"sync"
	"time"
)

// throttle spaces requests from every goroutine sharing a client. Each
// request reserves the next start slot, and a successful response pushes
// the next slot at least gap past its completion.
type throttle struct {
	mu   sync.Mutex
	gap  time.Duration
	next time.Time
	now  func() time.Time
}

func newThrottle(gap time.Duration) *throttle {
	return &throttle{gap: gap, now: time.Now}
}

// reserve claims a start slot and returns how long to wait for it.
func (t *throttle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.gap)
	return slot.Sub(now)
}

// done records a successful response.
func (t *throttle) done() {
	t.mu.Lock()
	defer t.mu.Unlock()

	after := t.now().Add(t.gap)
	if after.After(t.next) {
		t.next = after
	}
}

// wait blocks until a slot is available or ctx ends.
func (t *throttle) wait(ctx context.Context, sleep sleepFunc) error {
	if t.gap <= 0 {
		return ctx.Err()
	}
	return sleep(ctx, t.reserve())
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
