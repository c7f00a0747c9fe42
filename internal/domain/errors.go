package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports malformed input or an unknown auction.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StateError reports an operation the auction's lifecycle state does not allow.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return e.Message }

// ConflictError means another bid committed first. It carries the standing high bid so the
// caller can retry above it.
type ConflictError struct {
	CurrentHighestBid int64
	HighestBidderID   *uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("bid is no longer highest; current highest bid is %d", e.CurrentHighestBid)
}

// InsufficientFundsError means the user's spendable balance is below the required amount.
type InsufficientFundsError struct {
	UserID    uuid.UUID
	Required  int64
	Spendable int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient points: required %d, spendable %d", e.Required, e.Spendable)
}

// InternalError wraps a storage or collaborator failure. The transaction it occurred in is
// always rolled back.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func NewStateError(format string, args ...interface{}) error {
	return &StateError{Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as an InternalError unless it already belongs to the taxonomy.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// IsDomainError reports whether err (or anything it wraps) is one of the taxonomy types.
func IsDomainError(err error) bool {
	var (
		ve *ValidationError
		se *StateError
		ce *ConflictError
		fe *InsufficientFundsError
		ie *InternalError
	)
	return errors.As(err, &ve) || errors.As(err, &se) || errors.As(err, &ce) ||
		errors.As(err, &fe) || errors.As(err, &ie)
}
