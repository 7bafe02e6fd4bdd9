package venue

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// defaultMinInterval is the rate-limit floor the source relies on its
// SDKs to enforce; adapters that speak raw HTTP need it explicitly.
const defaultMinInterval = 20 * time.Millisecond

// newLimiter builds a token bucket admitting one request per interval,
// shared by every caller (monitor, executor, HTTP snapshot path) that
// talks to a given venue, so concurrent traffic doesn't exceed the
// venue's documented rate limit.
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		interval = defaultMinInterval
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// wait blocks until the limiter admits one more request or ctx is done.
func wait(ctx context.Context, l *rate.Limiter) error {
	return l.Wait(ctx)
}

// limiterHandle is the per-adapter handle embedding a token bucket;
// adapters hold one and call wait before every outbound request
// rather than threading a bare *rate.Limiter through call sites.
type limiterHandle struct {
	l *rate.Limiter
}

func newLimiterHandle(interval time.Duration) *limiterHandle {
	return &limiterHandle{l: newLimiter(interval)}
}

func (h *limiterHandle) wait(ctx context.Context) error {
	return wait(ctx, h.l)
}
