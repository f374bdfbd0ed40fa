// Package errs defines the error taxonomy shared by the availability engine,
// the booking orchestrator and the transport layers.
package errs

import (
	"errors"
	"fmt"
)

// Clause names the availability rule a candidate slot failed.
type Clause string

const (
	ClauseSchedule          Clause = "schedule"
	ClauseStaffBusy         Clause = "staff-busy"
	ClauseCapacity          Clause = "capacity"
	ClauseBusinessClosed    Clause = "business-closed"
	ClauseSlotTaken         Clause = "slot-taken"
	ClauseServiceNotOffered Clause = "service-not-offered"
)

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// NormalizationError reports a timestamp or time-of-day that could not be parsed.
type NormalizationError struct {
	Input  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %q: %s", e.Input, e.Reason)
}

// ConflictError is returned when a candidate slot fails an availability clause.
type ConflictError struct {
	Clause Clause
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail == "" {
		return "conflict: " + string(e.Clause)
	}
	return fmt.Sprintf("conflict: %s: %s", e.Clause, e.Detail)
}

func Conflict(clause Clause, detail string) error {
	return &ConflictError{Clause: clause, Detail: detail}
}

// TransientStoreError wraps a store failure that a new attempt may not hit.
type TransientStoreError struct {
	Err error
}

func (e *TransientStoreError) Error() string { return "transient store error: " + e.Err.Error() }
func (e *TransientStoreError) Unwrap() error { return e.Err }

// StoreError wraps a non-retryable store failure.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return "store error: " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsNormalization(err error) bool {
	var target *NormalizationError
	return errors.As(err, &target)
}

func IsTransient(err error) bool {
	var target *TransientStoreError
	return errors.As(err, &target)
}

// ConflictClause returns the failed clause when err is a ConflictError.
func ConflictClause(err error) (Clause, bool) {
	var target *ConflictError
	if errors.As(err, &target) {
		return target.Clause, true
	}
	return "", false
}

func IsConflict(err error) bool {
	_, ok := ConflictClause(err)
	return ok
}
