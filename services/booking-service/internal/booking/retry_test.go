package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return &errs.TransientStoreError{Err: errors.New("serialization failure")}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 2}, func(context.Context) error {
		calls++
		return &errs.TransientStoreError{Err: errors.New("deadlock")}
	})
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, 2, calls)
}

func TestRetry_OnlyTransientErrorsAreRetried(t *testing.T) {
	for _, final := range []error{
		errs.Conflict(errs.ClauseCapacity, ""),
		errs.Validation("staff_id", "required"),
		&errs.StoreError{Err: errors.New("disk full")},
	} {
		calls := 0
		err := Retry(context.Background(), RetryPolicy{Attempts: 5}, func(context.Context) error {
			calls++
			return final
		})
		assert.Equal(t, final, err)
		assert.Equal(t, 1, calls)
	}
}

func TestRetry_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryPolicy{Attempts: 10, Backoff: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return &errs.TransientStoreError{Err: errors.New("lock timeout")}
	})
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, 1, calls)
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, []string{"business:b"}, lockKeys("time_only", "b", "", ""))
	assert.Equal(t, []string{"resource:r", "staff:s"}, lockKeys("staff_and_resource", "b", "s", "r"))
}
