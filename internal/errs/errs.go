// Package errs is the error taxonomy shared by the commerce core and its transports.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation               = errors.New("commerce: validation failed")
	ErrNotFound                 = errors.New("commerce: not found")
	ErrAlreadyExists            = errors.New("commerce: already exists")
	ErrCouponInvalid            = errors.New("commerce: coupon invalid")
	ErrCouponNoLongerApplicable = errors.New("commerce: coupon no longer applicable")
	ErrInsufficientFunds        = errors.New("commerce: insufficient funds")
	ErrInvalidStateTransition   = errors.New("commerce: invalid state transition")
	ErrConcurrencyConflict      = errors.New("commerce: concurrency conflict")
	ErrLedgerIntegrity          = errors.New("commerce: ledger integrity violation")
	ErrWalletFrozen             = errors.New("commerce: wallet frozen")
)

// ValidationError describes bad input rejected before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("commerce: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, msg string) error {
	return ValidationError{Field: field, Message: msg}
}

// CouponError carries the applicability reasons of a rejected coupon.
// Err is ErrCouponInvalid or ErrCouponNoLongerApplicable.
type CouponError struct {
	Code    string
	Reasons []string
	Err     error
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", e.Err, e.Code, strings.Join(e.Reasons, ", "))
}

func (e *CouponError) Unwrap() error { return e.Err }

// IsRetryable reports whether the whole operation can be retried as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsBusiness reports errors that are final answers rather than infrastructure failures.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrCouponInvalid) ||
		errors.Is(err, ErrCouponNoLongerApplicable) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrWalletFrozen)
}

// Code maps an error to a stable machine-readable code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAlreadyExists):
		return "ALREADY_EXISTS"
	case errors.Is(err, ErrCouponInvalid):
		return "COUPON_INVALID"
	case errors.Is(err, ErrCouponNoLongerApplicable):
		return "COUPON_NO_LONGER_APPLICABLE"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrConcurrencyConflict):
		return "CONCURRENCY_CONFLICT"
	case errors.Is(err, ErrLedgerIntegrity):
		return "LEDGER_INTEGRITY_VIOLATION"
	case errors.Is(err, ErrWalletFrozen):
		return "WALLET_FROZEN"
	default:
		return "INTERNAL"
	}
}
