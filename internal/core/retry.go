package core

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds retries of transient discovery and schema-fetch
// failures. Attempts counts the total number of tries, not the number
// of retries; Attempts <= 1 disables retrying.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy matches the configuration defaults.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: 500 * time.Millisecond, Max: 10 * time.Second}

// Do runs op until it succeeds, returns a permanent error, or the
// attempt budget is exhausted. Only errors classified by IsTransient
// are retried. The last error is returned as-is so callers can still
// inspect its type.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := newBackoff(p.Base, p.Max)
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if !sleepCtx(ctx, b.Next()) {
			return ctx.Err()
		}
	}
	return err
}

// sleepCtx blocks for d or until ctx is done.
// Returns true if the sleep completed (context still alive).
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoff implements simple exponential backoff capped at a maximum.
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max, current: base}
}

// Next returns a jittered delay based on the current backoff interval,
// then doubles the interval for the next call. Full jitter (uniform
// random between 0 and current) prevents synchronized retry storms
// against an already struggling API server.
func (b *backoff) Next() time.Duration {
	d := b.current
	jittered := time.Duration(rand.Int64N(int64(d) + 1))
	if next := b.current * 2; next > b.max {
		b.current = b.max
	} else {
		b.current = next
	}
	return jittered
}
