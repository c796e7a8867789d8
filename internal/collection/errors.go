package collection

import (
	"errors"
	"fmt"
)

// MutationError represents a failed or rejected collection mutation.
//
// Categories:
//   - Network: the remote call failed; the local snapshot was rolled back.
//   - Validation: quantity below 1, above known stock, or entity absent;
//     rejected before any local mutation or network call.
//   - Capacity: wishlist membership would exceed its fixed maximum;
//     rejected locally, no network call issued.
//
// No MutationError is fatal to the process: the worst outcome is a surfaced
// message with a correctly reverted local state.
type MutationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the operation that failed (e.g. "add", "update", "remove").
	Op string

	// EntityID identifies the affected entity, when there is one.
	EntityID string

	// Err is the underlying transport error for network failures.
	Err error
}

// ErrorCode categorizes mutation errors.
type ErrorCode string

const (
	// ErrCodeNetwork indicates a failed remote call (rolled back locally).
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeValidation indicates a locally rejected mutation.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeCapacity indicates the wishlist is at its maximum size.
	ErrCodeCapacity ErrorCode = "CAPACITY"
)

// Error implements the error interface.
func (e *MutationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s: %s (entity=%s)", e.Code, e.Op, msg, e.EntityID)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
}

// Unwrap exposes the underlying transport error, if any.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// ErrAlreadyPresent is the sentinel returned by Remote implementations when
// the server reports the entity is already in the collection. The Store
// treats it as idempotent success, never as a failure.
var ErrAlreadyPresent = errors.New("entity already present in collection")

// IsNetworkError reports whether err is a network-category MutationError.
// Uses errors.As to handle wrapped errors.
func IsNetworkError(err error) bool {
	var me *MutationError
	return errors.As(err, &me) && me.Code == ErrCodeNetwork
}

// IsValidationError reports whether err is a validation-category MutationError.
func IsValidationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me) && me.Code == ErrCodeValidation
}

// IsCapacityError reports whether err is a capacity-category MutationError.
func IsCapacityError(err error) bool {
	var me *MutationError
	return errors.As(err, &me) && me.Code == ErrCodeCapacity
}

// NewNetworkError wraps a failed remote call.
func NewNetworkError(op, entityID string, err error) *MutationError {
	return &MutationError{
		Code:     ErrCodeNetwork,
		Message:  "remote call failed",
		Op:       op,
		EntityID: entityID,
		Err:      err,
	}
}

// NewValidationError rejects a mutation before it touches state or network.
func NewValidationError(op, entityID, message string) *MutationError {
	return &MutationError{
		Code:     ErrCodeValidation,
		Message:  message,
		Op:       op,
		EntityID: entityID,
	}
}

// NewCapacityError rejects a wishlist add that would exceed capacity.
func NewCapacityError(op, entityID string, capacity int) *MutationError {
	return &MutationError{
		Code:     ErrCodeCapacity,
		Message:  fmt.Sprintf("wishlist is full (max %d items)", capacity),
		Op:       op,
		EntityID: entityID,
	}
}
