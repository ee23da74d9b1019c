package starfish

import (
	"errors"
	"math/rand/v2"
	"time"
)

// backoff computes the wait before retry n, where n is 0 for the first retry:
// min(base * 2^n, max) plus up to jitter*that of random extra delay.
// A Retry-After hint on the error replaces the computed value, capped at max.
type backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64
	rand   func() float64
}

func newBackoff(opts clientOptions) backoff {
	return backoff{
		base:   opts.backoffBase,
		max:    opts.backoffMax,
		jitter: opts.jitter,
		rand:   rand.Float64,
	}
}

func (b backoff) delay(n uint, err error) time.Duration {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(apiErr.RetryAfter, b.max)
	}

	d := b.max
	if n < 32 {
		if exp := b.base << n; exp > 0 && exp < b.max {
			d = exp
		}
	}
	if b.jitter > 0 {
		d += time.Duration(b.rand() * b.jitter * float64(d))
	}
	return d
}
