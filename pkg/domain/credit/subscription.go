package credit

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Subscription is the tier a user holds and the window it is valid for.
// It only changes as a consequence of a COMPLETED subscription purchase.
type Subscription struct {
	UserID            int64
	Tier              string
	ValidFrom         time.Time
	ValidUntil        time.Time
	LastTransactionID uuid.UUID
	TransactionIDs    []uuid.UUID
	UpdatedAt         time.Time
}

// IsActive reports whether the subscription covers at.
func (s *Subscription) IsActive(at time.Time) bool {
	return s != nil && !at.Before(s.ValidFrom) && at.Before(s.ValidUntil)
}

// HasApplied reports whether txID already extended this subscription.
func (s *Subscription) HasApplied(txID uuid.UUID) bool {
	return s != nil && slices.Contains(s.TransactionIDs, txID)
}

// Extend applies a purchase of tier for period at now.
// Same active tier: the window is pushed out. Otherwise a new window starts at now.
func (s *Subscription) Extend(tier string, period time.Duration, txID uuid.UUID, now time.Time) {
	if s.Tier == tier && s.IsActive(now) {
		s.ValidUntil = s.ValidUntil.Add(period)
	} else {
		s.Tier = tier
		s.ValidFrom = now
		s.ValidUntil = now.Add(period)
	}
	s.LastTransactionID = txID
	s.TransactionIDs = append(s.TransactionIDs, txID)
	s.UpdatedAt = now
}
