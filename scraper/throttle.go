package scraper

import (
	"net/http"
	"sync"
	"time"
)

// throttleStep is the minimum increase applied when the target signals overload.
const throttleStep = 250 * time.Millisecond

// throttle keeps the adaptive delay added on top of the collector's base
// delay. It moves halfway toward the observed latency after each response,
// backs off on 429 and 503, never shrinks after an error answer and never
// exceeds max. A zero max disables it.
type throttle struct {
	mu    sync.Mutex
	delay time.Duration
	max   time.Duration
}

func newThrottle(max time.Duration) *throttle {
	return &throttle{max: max}
}

func (t *throttle) current() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

func (t *throttle) observe(latency time.Duration, status int) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.max <= 0 {
		return 0
	}

	target := latency
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		target = max(2*t.delay, latency, throttleStep)
	}

	next := (t.delay + target) / 2
	failed := status < http.StatusOK || status >= http.StatusMultipleChoices
	if failed && next < t.delay {
		next = t.delay
	}
	if next > t.max {
		next = t.max
	}
	t.delay = next
	return next
}
