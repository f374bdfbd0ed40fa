package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/bookslot/libs/db"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))

	for _, code := range []string{db.CodeSerializationFailure, db.CodeDeadlockDetected, db.CodeLockNotAvailable} {
		err := classify(fmt.Errorf("commit: %w", &pgconn.PgError{Code: code}))
		assert.True(t, errs.IsTransient(err), code)
	}

	clause, ok := errs.ConflictClause(classify(&pgconn.PgError{Code: db.CodeExclusionViolation}))
	assert.True(t, ok)
	assert.Equal(t, errs.ClauseStaffBusy, clause)

	var storeErr *errs.StoreError
	assert.True(t, errors.As(classify(&pgconn.PgError{Code: db.CodeForeignKeyViolation}), &storeErr))
	assert.True(t, errors.As(classify(errors.New("conn reset")), &storeErr))

	assert.ErrorIs(t, classify(context.Canceled), context.Canceled)
}

func TestClassify_KeepsTypedErrors(t *testing.T) {
	typedErrs := []error{
		errs.Conflict(errs.ClauseCapacity, "full"),
		errs.Validation("staff_id", "required"),
		errs.NotFound("service", "x"),
		&errs.TransientStoreError{Err: errors.New("retry")},
		&errs.StoreError{Err: errors.New("boom")},
	}
	for _, err := range typedErrs {
		assert.Same(t, err, classify(err))
	}
}

func TestNotFound(t *testing.T) {
	err := notFound(fmt.Errorf("scan: %w", pgx.ErrNoRows), "booking", "bk-1")
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, `booking "bk-1" not found`, err.Error())

	assert.True(t, errs.IsNotFound(notFound(&pgconn.PgError{Code: db.CodeInvalidText}, "business", "not-a-uuid")))
	assert.True(t, errs.IsTransient(notFound(&pgconn.PgError{Code: db.CodeSerializationFailure}, "booking", "bk-1")))
}

func TestMigrationsEmbedded(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	assert.NoError(t, err)
	assert.Contains(t, string(up), "bookings_staff_no_overlap")

	_, err = migrationsFS.ReadFile("migrations/000001_init.down.sql")
	assert.NoError(t, err)
}
