// Package pacer spaces upstream requests and computes retry delays.
package pacer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"
)

// Pacer enforces a fixed minimum interval between requests.
type Pacer struct {
	limiter *rate.Limiter
}

// New returns a pacer allowing one request per interval. A non-positive
// interval disables pacing.
func New(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request may go out or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Retry describes the rate-limit retry policy: up to MaxAttempts requests,
// waiting Base, 2*Base, 4*Base... between them.
type Retry struct {
	MaxAttempts int
	Base        time.Duration
}

// BackOff returns a fresh delay sequence for one title. NextBackOff yields
// backoff.Stop once MaxAttempts-1 delays have been handed out.
func (r Retry) BackOff() backoff.BackOff {
	retries := r.MaxAttempts - 1
	if retries <= 0 {
		// WithMaxRetries treats 0 as unlimited
		return &backoff.StopBackOff{}
	}

	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if r.Base > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = r.Base
		exp.Multiplier = 2
		exp.RandomizationFactor = 0
		exp.MaxInterval = r.Base << 10
		exp.MaxElapsedTime = 0
		exp.Reset()
		b = exp
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
