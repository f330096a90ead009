package repository

import (
	"context"

	repo "github.com/amirasaad/creditcore/pkg/repository"
	"github.com/amirasaad/creditcore/pkg/repository/balance"
	"github.com/amirasaad/creditcore/pkg/repository/subscription"
	"github.com/amirasaad/creditcore/pkg/repository/transaction"
	"gorm.io/gorm"
)

// UoW provides the transaction boundary and repository access in one abstraction.
// Repositories obtained inside Do share the same database transaction.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs fn in a database transaction. A nested Do joins the outer transaction.
// Errors returned by fn are passed through untouched; begin and commit errors
// are reported as storage failures.
func (u *UoW) Do(ctx context.Context, fn func(uow repo.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}

	var fnErr error
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&UoW{db: u.db, tx: tx})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return MapGormErrorToDomain(err)
	}
	return err
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// TransactionRepository returns the transaction log bound to the current session.
func (u *UoW) TransactionRepository() transaction.Repository {
	return NewTransactionRepository(u.session())
}

// BalanceRepository returns the balance store bound to the current session.
func (u *UoW) BalanceRepository() balance.Repository {
	return NewBalanceRepository(u.session())
}

// SubscriptionRepository returns the subscription store bound to the current session.
func (u *UoW) SubscriptionRepository() subscription.Repository {
	return NewSubscriptionRepository(u.session())
}
