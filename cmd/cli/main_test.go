package main

import (
	"context"
	"testing"

	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/service/ledger"
	"github.com/amirasaad/creditcore/webapi/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserArg(t *testing.T) {
	id, err := userArg([]string{"42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, args := range [][]string{nil, {"0"}, {"abc"}} {
		_, err := userArg(args)
		assert.Error(t, err, args)
	}
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()
	_, a := testutils.SetupTestApp(t, nil)
	_, err := a.LedgerService.Apply(ctx, ledger.ApplyRequest{
		OperationID: "seed", UserID: 1, Amount: money.MustParse(50, money.CRD),
		Direction: credit.Credit, Category: credit.CategoryPurchase,
	})
	require.NoError(t, err)
	_, err = a.LedgerService.Apply(ctx, ledger.ApplyRequest{
		OperationID: "gen-1", UserID: 1, Amount: money.MustParse(20, money.CRD),
		Direction: credit.Debit, Category: credit.CategoryImageGen,
	})
	require.NoError(t, err)

	for _, c := range [][]string{
		{"balance", "1"},
		{"reconcile", "1"},
		{"history", "1", "5"},
		{"reverse", "1", "gen-1", "failed render"},
		{"sweep"},
	} {
		assert.NoError(t, runCommand(ctx, a, c[0], c[1:]), c)
	}

	b, err := a.BalanceService.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse(50, money.CRD), b)

	assert.ErrorIs(t, runCommand(ctx, a, "reverse", []string{"1", "gen-1"}), credit.ErrAlreadyReversed)
	assert.Error(t, runCommand(ctx, a, "bogus", nil))
}

func TestSignCallback(t *testing.T) {
	cfg := &config.App{Payment: &config.Payment{Platform: &config.Platform{Secret: "s", Currency: "XTR"}}}
	assert.NoError(t, signCallback(cfg, []string{"inv-1", "paid", "50"}))
	assert.Error(t, signCallback(cfg, []string{"inv-1"}))
	assert.Error(t, signCallback(&config.App{}, []string{"inv-1", "paid"}))
}
