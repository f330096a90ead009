package repository

import (
	"context"
	"errors"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/repository/subscription"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a subscription store backed by db.
func NewSubscriptionRepository(db *gorm.DB) subscription.Repository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Get(ctx context.Context, userID int64) (*credit.Subscription, error) {
	return r.take(r.db.WithContext(ctx), userID)
}

func (r *subscriptionRepository) GetForUpdate(ctx context.Context, userID int64) (*credit.Subscription, error) {
	return r.take(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), userID)
}

func (r *subscriptionRepository) take(db *gorm.DB, userID int64) (*credit.Subscription, error) {
	var m Subscription
	err := db.Where("user_id = ?", userID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toDomainSubscription(&m), nil
}

func (r *subscriptionRepository) Insert(ctx context.Context, sub *credit.Subscription) (bool, error) {
	var affected int64
	err := WrapError(func() error {
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(fromDomainSubscription(sub))
		affected = res.RowsAffected
		return res.Error
	})
	return affected == 1, err
}

func (r *subscriptionRepository) Save(ctx context.Context, sub *credit.Subscription) error {
	m := fromDomainSubscription(sub)
	return WrapError(func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				UpdateAll: true,
			}).
			Create(m).Error
	})
}
