package repository

import (
	"context"

	"github.com/amirasaad/creditcore/pkg/repository/balance"
	"github.com/amirasaad/creditcore/pkg/repository/subscription"
	"github.com/amirasaad/creditcore/pkg/repository/transaction"
)

// UnitOfWork defines the contract for transactional work and repository access.
//
// Every repository returned inside Do is bound to the same database
// transaction, so the idempotency lookup, the conditional balance update and
// the transaction-record write commit or roll back together.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary.
	// If fn returns an error, the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	TransactionRepository() transaction.Repository
	BalanceRepository() balance.Repository
	SubscriptionRepository() subscription.Repository
}
