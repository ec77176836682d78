package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// StoreLimiter is a fixed-window limiter over a ulule store.
type StoreLimiter struct {
	limiter *limiter.Limiter
}

// NewStoreLimiter limits each key to max requests per period. With a nil client the
// counters live in process memory, which is enough for a single API instance.
func NewStoreLimiter(client *redis.Client, prefix string, max int64, period time.Duration) (*StoreLimiter, error) {
	var (
		store limiter.Store
		err   error
	)
	if client != nil {
		store, err = limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix, MaxRetry: 3})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
	}
	rate := limiter.Rate{Period: period, Limit: max}
	return &StoreLimiter{limiter: limiter.New(store, rate)}, nil
}

// Allow implements Limiter.
func (l *StoreLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := l.limiter.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   time.Unix(res.Reset, 0),
	}, nil
}
