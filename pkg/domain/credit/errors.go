package credit

import (
	"errors"

	"github.com/amirasaad/creditcore/pkg/money"
)

var (
	// ErrInvalidAmount is returned when an amount is non-positive, non-finite
	// or more precise than the currency allows.
	ErrInvalidAmount = money.ErrInvalidAmount

	// ErrInsufficientFunds is returned when a debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateOperation is returned when an operation id is reused with different parameters.
	ErrDuplicateOperation = errors.New("duplicate operation id with conflicting parameters")

	// ErrNotFound is returned when a referenced transaction does not exist.
	ErrNotFound = errors.New("transaction not found")

	// ErrAlreadyReversed is returned when a debit has already been reversed.
	ErrAlreadyReversed = errors.New("transaction already reversed")

	// ErrInvalidState is returned when an operation is not allowed in the record's current state.
	ErrInvalidState = errors.New("invalid transaction state")

	// ErrStorageFailure wraps infrastructure errors. It is the only retryable error.
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvalidRequest is returned for malformed identifiers or unknown directions.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBypassNotAllowed is returned when a bypassed debit is refused by policy.
	ErrBypassNotAllowed = errors.New("balance check bypass not allowed for debits")

	// ErrUnknownTier is returned when a subscription tier is not configured.
	ErrUnknownTier = errors.New("unknown subscription tier")
)

// IsRetryable reports whether err may succeed when retried with the same operation id.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}
