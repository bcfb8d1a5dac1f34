package models

import "errors"

var (
	ErrImbalancedTransaction = errors.New("imbalanced transaction")
	ErrDuplicateTransaction  = errors.New("duplicate transaction")
	ErrEscrowLocked          = errors.New("escrow locked")
	ErrPayoutLocked          = errors.New("payout locked")
	ErrInvalidState          = errors.New("invalid state")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrStoreUnavailable      = errors.New("store unavailable")

	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIdempotencyConflict = errors.New("transaction id reused with a different payload")
)

// IsRetryable reports whether the caller may safely retry the operation.
// Posting is idempotent per transaction id, so a transient store failure is
// the only retryable outcome.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsLocked reports whether funds are frozen pending dispute resolution or
// confirmation. These are expected business outcomes, not faults.
func IsLocked(err error) bool {
	return errors.Is(err, ErrEscrowLocked) || errors.Is(err, ErrPayoutLocked)
}
