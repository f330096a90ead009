package repository

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/repository/transaction"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a transaction log backed by db.
func NewTransactionRepository(db *gorm.DB) transaction.Repository {
	return &transactionRepository{db: db}
}

// InsertIfAbsent implements transaction.Repository.
// Conflicts on (user_id, operation_id) or invoice_ref leave the table untouched.
func (r *transactionRepository) InsertIfAbsent(ctx context.Context, tx *credit.Transaction) (bool, error) {
	m := fromDomainTransaction(tx)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.UpdatedAt = m.CreatedAt

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	if res.Error != nil {
		return false, MapGormErrorToDomain(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdateStatus implements transaction.Repository.
func (r *transactionRepository) UpdateStatus(
	ctx context.Context,
	userID int64,
	operationID string,
	from credit.Status,
	update transaction.StatusUpdate,
) (bool, error) {
	updates := map[string]any{
		"status":     string(update.Status),
		"updated_at": time.Now().UTC(),
	}
	if update.BalanceAfter != nil {
		updates["balance_after"] = update.BalanceAfter.Int64()
	}
	if update.FailureReason != "" {
		updates["failure_reason"] = update.FailureReason
	}
	if update.CompletedAt != nil {
		updates["completed_at"] = *update.CompletedAt
	}
	if len(update.External) > 0 {
		current, err := r.Find(ctx, userID, operationID)
		if err != nil {
			return false, err
		}
		if current == nil {
			return false, nil
		}
		meta := current.Metadata
		if meta.External == nil {
			meta.External = make(map[string]string, len(update.External))
		}
		maps.Copy(meta.External, update.External)
		updates["metadata"] = datatypes.NewJSONType(meta)
	}

	res := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("user_id = ? AND operation_id = ? AND status = ?", userID, operationID, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, MapGormErrorToDomain(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Find implements transaction.Repository.
func (r *transactionRepository) Find(ctx context.Context, userID int64, operationID string) (*credit.Transaction, error) {
	var m Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND operation_id = ?", userID, operationID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toDomainTransaction(&m), nil
}

// FindPendingByInvoiceRef implements transaction.Repository.
func (r *transactionRepository) FindPendingByInvoiceRef(ctx context.Context, invoiceRef string) (*credit.Transaction, error) {
	var m Transaction
	err := r.db.WithContext(ctx).
		Where("invoice_ref = ?", invoiceRef).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toDomainTransaction(&m), nil
}

// ListStalePending implements transaction.Repository.
func (r *transactionRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*credit.Transaction, error) {
	var rows []Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND invoice_ref IS NOT NULL AND created_at < ?", string(credit.StatusPending), cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toDomainTransactions(rows), nil
}

// ListByUser implements transaction.Repository.
func (r *transactionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*credit.Transaction, error) {
	var rows []Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toDomainTransactions(rows), nil
}

// SumCompleted implements transaction.Repository.
func (r *transactionRepository) SumCompleted(ctx context.Context, userID int64) (money.Amount, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE -amount END), 0)", string(credit.Credit)).
		Where("user_id = ? AND status = ?", userID, string(credit.StatusCompleted)).
		Scan(&sum).Error
	if err != nil {
		return 0, MapGormErrorToDomain(err)
	}
	return money.Amount(sum), nil
}

func toDomainTransactions(rows []Transaction) []*credit.Transaction {
	out := make([]*credit.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, toDomainTransaction(&rows[i]))
	}
	return out
}

func amountOf(v int64) money.Amount {
	return money.Amount(v)
}

func codeOf(s string) money.Code {
	return money.Code(s)
}
