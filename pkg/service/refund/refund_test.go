package refund_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	infraeventbus "github.com/amirasaad/creditcore/infra/eventbus"
	infrarepo "github.com/amirasaad/creditcore/infra/repository"
	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/service/ledger"
	"github.com/amirasaad/creditcore/pkg/service/refund"
	"github.com/amirasaad/creditcore/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*ledger.Service, *refund.Service) {
	t.Helper()
	db := testutils.NewTestDB(t)
	l := ledger.New(ledger.Deps{
		Uow:    infrarepo.NewUoW(db),
		Bus:    infraeventbus.NewWithMemory(slog.Default()),
		Logger: slog.Default(),
		Config: &config.Ledger{StorageTimeout: 5 * time.Second},
	})
	return l, refund.New(l, nil, slog.Default())
}

func apply(t *testing.T, l *ledger.Service, op string, amount money.Amount, dir credit.Direction) *ledger.Result {
	t.Helper()
	category := credit.CategoryVideoGen
	if dir == credit.Credit {
		category = credit.CategoryPurchase
	}
	res, err := l.Apply(context.Background(), ledger.ApplyRequest{
		OperationID: op, UserID: 1, Amount: amount, Direction: dir, Category: category,
	})
	require.NoError(t, err)
	return res
}

func TestReverse_RoundTrip(t *testing.T) {
	ctx := context.Background()
	l, svc := setup(t)
	apply(t, l, "seed", 5000, credit.Credit)
	apply(t, l, "job-1", 1500, credit.Debit)

	res, err := svc.Reverse(ctx, 1, "job-1", "generation failed")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(5000), res.NewBalance)
	assert.Equal(t, money.Amount(1500), res.Amount)

	tx, err := l.Find(ctx, 1, refund.ReversalOperationID("job-1"))
	require.NoError(t, err)
	assert.Equal(t, credit.CategoryRefund, tx.Category)
	assert.Equal(t, "job-1", tx.Metadata.ReversalOf)
	assert.True(t, tx.Bypass)

	_, err = svc.Reverse(ctx, 1, "job-1", "again")
	assert.ErrorIs(t, err, credit.ErrAlreadyReversed)

	hist, err := l.History(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 3)
}

func TestReverse_Rejections(t *testing.T) {
	ctx := context.Background()
	l, svc := setup(t)
	apply(t, l, "seed", 1000, credit.Credit)

	_, err := svc.Reverse(ctx, 1, "missing", "")
	assert.ErrorIs(t, err, credit.ErrNotFound)

	_, err = svc.Reverse(ctx, 1, "seed", "")
	assert.ErrorIs(t, err, credit.ErrInvalidState, "credits cannot be reversed")

	_, err = l.Apply(ctx, ledger.ApplyRequest{
		OperationID: "too-big", UserID: 1, Amount: 9000, Direction: credit.Debit, Category: credit.CategoryImageGen,
	})
	require.ErrorIs(t, err, credit.ErrInsufficientFunds)
	_, err = svc.Reverse(ctx, 1, "too-big", "")
	assert.ErrorIs(t, err, credit.ErrInvalidState, "failed debits cannot be reversed")
}
