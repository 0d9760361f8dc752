package social

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// budget paces requests against one endpoint family. Each source owns its
// own budget; they are never shared, so one throttled source cannot stall
// the others.
type budget struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	remaining int
	reset     time.Time
	known     bool
}

func newBudget() *budget {
	// Gentle client-side pacing; the observed server headers do the real work.
	return &budget{limiter: rate.NewLimiter(rate.Every(120*time.Millisecond), 5)}
}

// wait blocks until the next request may be sent. When the server has
// reported an exhausted window, it sleeps through to the reset time.
func (b *budget) wait(ctx context.Context) error {
	b.mu.Lock()
	var pause time.Duration
	if b.known && b.remaining <= 0 {
		pause = time.Until(b.reset)
	}
	b.mu.Unlock()

	if pause > 0 {
		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return b.limiter.Wait(ctx)
}

// observe records the rate-limit state the server reported on a response.
func (b *budget) observe(h http.Header) {
	remaining, remErr := strconv.Atoi(h.Get("x-rate-limit-remaining"))
	resetUnix, resetErr := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64)
	if remErr != nil || resetErr != nil {
		return
	}

	b.mu.Lock()
	b.remaining = remaining
	b.reset = time.Unix(resetUnix, 0)
	b.known = true
	b.mu.Unlock()
}
