package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"job_applier/internal/domain"
)

func TestPolicy_Do_SucceedsFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	attempts, err := p.Do(context.Background(), func(context.Context) error {
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Do_RetriesRateLimited(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.ErrRateLimited
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPolicy_Do_StopsAtBudget(t *testing.T) {
	p := Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond}

	attempts, err := p.Do(context.Background(), func(context.Context) error {
		return domain.ErrRateLimited
	})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 2, attempts)
}

func TestPolicy_Do_NonRetryableReturnsImmediately(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	boom := errors.New("boom")
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialBackoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := p.Do(ctx, func(context.Context) error {
		return domain.ErrRateLimited
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Delay_DoublesAndCaps(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second}

	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 2*time.Second, p.delay(2))
	assert.Equal(t, 3*time.Second, p.delay(3))
	assert.Equal(t, 3*time.Second, p.delay(4))
}
