package subscription

import (
	"context"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
)

// Repository defines access to per-user subscription state.
type Repository interface {
	// Get returns the user's subscription or nil when none exists.
	Get(ctx context.Context, userID int64) (*credit.Subscription, error)

	// GetForUpdate is Get with the row locked until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, userID int64) (*credit.Subscription, error)

	// Insert creates the user's first subscription. It reports false when a
	// row already exists.
	Insert(ctx context.Context, sub *credit.Subscription) (bool, error)

	// Save creates or replaces the user's subscription.
	Save(ctx context.Context, sub *credit.Subscription) error
}
