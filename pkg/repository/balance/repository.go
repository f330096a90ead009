package balance

import (
	"context"

	"github.com/amirasaad/creditcore/pkg/money"
)

// Repository defines access to the materialized per-user balance.
type Repository interface {
	// Read returns the current balance; a user without a row has balance 0.
	Read(ctx context.Context, userID int64) (money.Amount, error)

	// ConditionalAdjust adds delta to the balance in one statement, only when
	// the resulting balance stays at or above minResulting. A nil minResulting
	// applies no floor. It reports the resulting balance and whether a row was
	// affected.
	ConditionalAdjust(
		ctx context.Context,
		userID int64,
		delta money.Amount,
		minResulting *money.Amount,
	) (money.Amount, bool, error)
}
