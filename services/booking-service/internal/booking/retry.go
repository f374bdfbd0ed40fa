package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
)

type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is the delay before the second try; it doubles for each further try.
	Backoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}
}

// Retry runs fn until it succeeds, fails with an error other than
// errs.TransientStoreError, the attempts are used up, or ctx is done.
func Retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Backoff
	for i := 1; ; i++ {
		err := fn(ctx)
		if err == nil || !errs.IsTransient(err) || i >= attempts {
			return err
		}
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay *= 2
	}
}
