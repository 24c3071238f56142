package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const keyPrefix = "ratelimit"

// Result is the outcome of a limit check.
type Result struct {
	Allowed    bool
	Limit      Rate
	RetryAfter time.Duration
}

// Limiter applies several fixed-window budgets per key on top of one limiter store.
type Limiter struct {
	store limiter.Store
	now   func() time.Time
}

func NewLimiter(store limiter.Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// NewMemoryStore keeps window counters in process.
func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          keyPrefix,
		CleanUpInterval: time.Minute,
	})
}

// Allow records a hit for key against every rate and reports the first budget exhausted.
func (l *Limiter) Allow(ctx context.Context, key string, rates []Rate) (Result, error) {
	for _, rate := range rates {
		state, err := limiter.New(l.store, rate).Get(ctx, key+":"+rate.Formatted)
		if err != nil {
			return Result{}, fmt.Errorf("rate limit store: %w", err)
		}
		if state.Reached {
			retry := time.Unix(state.Reset, 0).Sub(l.now())
			if retry < time.Second {
				retry = time.Second
			}
			return Result{Allowed: false, Limit: rate, RetryAfter: retry}, nil
		}
	}
	return Result{Allowed: true}, nil
}
