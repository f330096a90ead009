package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/repository/balance"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type balanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository creates a balance store backed by db.
func NewBalanceRepository(db *gorm.DB) balance.Repository {
	return &balanceRepository{db: db}
}

// Read implements balance.Repository.
func (r *balanceRepository) Read(ctx context.Context, userID int64) (money.Amount, error) {
	var b Balance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, MapGormErrorToDomain(err)
	}
	return money.Amount(b.Balance), nil
}

// ConditionalAdjust implements balance.Repository.
//
// With a floor the change is a single guarded UPDATE, so two concurrent debits
// can never both pass the check. Without a floor the row is upserted.
func (r *balanceRepository) ConditionalAdjust(
	ctx context.Context,
	userID int64,
	delta money.Amount,
	minResulting *money.Amount,
) (money.Amount, bool, error) {
	now := time.Now().UTC()
	db := r.db.WithContext(ctx)

	if minResulting != nil {
		res := db.Model(&Balance{}).
			Where("user_id = ? AND balance + ? >= ?", userID, delta.Int64(), minResulting.Int64()).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance + ?", delta.Int64()),
				"updated_at": now,
			})
		if res.Error != nil {
			return 0, false, MapGormErrorToDomain(res.Error)
		}
		if res.RowsAffected == 0 {
			// Either the floor would be crossed or the user has no row (balance 0).
			current, err := r.Read(ctx, userID)
			return current, false, err
		}
		current, err := r.Read(ctx, userID)
		return current, err == nil, err
	}

	return r.upsert(ctx, userID, delta, now)
}

func (r *balanceRepository) upsert(
	ctx context.Context,
	userID int64,
	delta money.Amount,
	now time.Time,
) (money.Amount, bool, error) {
	row := Balance{UserID: userID, Balance: delta.Int64(), UpdatedAt: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("balances.balance + excluded.balance"),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return 0, false, MapGormErrorToDomain(err)
	}
	current, err := r.Read(ctx, userID)
	return current, err == nil, err
}
