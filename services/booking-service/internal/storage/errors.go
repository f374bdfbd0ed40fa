package storage

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/bookslot/libs/db"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
)

// classify maps a Postgres failure onto the error taxonomy. Errors that are
// already typed pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if typed(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch {
	case db.IsRetryable(err):
		return &errs.TransientStoreError{Err: err}
	case db.IsExclusionViolation(err):
		return errs.Conflict(errs.ClauseStaffBusy, "overlapping booking for staff member")
	}
	return &errs.StoreError{Err: err}
}

func typed(err error) bool {
	var store *errs.StoreError
	return errs.IsValidation(err) ||
		errs.IsNotFound(err) ||
		errs.IsNormalization(err) ||
		errs.IsConflict(err) ||
		errs.IsTransient(err) ||
		errors.As(err, &store)
}

// notFound turns pgx.ErrNoRows, and ids that are not valid uuids, into a
// NotFoundError for entity.
func notFound(err error, entity, id string) error {
	if db.IsNotFound(err) || db.SQLState(err) == db.CodeInvalidText {
		return errs.NotFound(entity, id)
	}
	return classify(err)
}
