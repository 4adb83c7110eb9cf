package lifecycle

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"job_applier/internal/domain"
)

// Policy is the per-step retry budget for rate-limited collaborator calls.
// Passed into the engine rather than baked into each client.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64 // fraction of the delay randomized, in [0,1]
}

// Do invokes fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Only domain.ErrRateLimited is retried. The number
// of attempts actually made is always returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	attempts := 0
	for {
		attempts++
		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if !errors.Is(err, domain.ErrRateLimited) || attempts >= p.MaxAttempts {
			return attempts, err
		}

		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(p.delay(attempts)):
		}
	}
}

func (p Policy) delay(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	if p.Jitter > 0 {
		spread := float64(backoff) * p.Jitter
		backoff = time.Duration(float64(backoff) - spread/2 + rand.Float64()*spread)
	}
	return backoff
}
