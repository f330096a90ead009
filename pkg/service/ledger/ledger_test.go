package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	infraeventbus "github.com/amirasaad/creditcore/infra/eventbus"
	infrarepo "github.com/amirasaad/creditcore/infra/repository"
	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/domain/events"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/service/ledger"
	"github.com/amirasaad/creditcore/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	svc *ledger.Service
	db  *gorm.DB
	bus *infraeventbus.MemoryEventBus
}

func newFixture(t *testing.T, cfg *config.Ledger, extender ledger.SubscriptionExtender) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = &config.Ledger{StorageTimeout: 5 * time.Second}
	}
	db := testutils.NewTestDB(t)
	bus := infraeventbus.NewWithMemory(slog.Default(), infraeventbus.WithRecording())
	svc := ledger.New(ledger.Deps{
		Uow:      infrarepo.NewUoW(db),
		Bus:      bus,
		Extender: extender,
		Logger:   slog.Default(),
		Config:   cfg,
	})
	return &fixture{svc: svc, db: db, bus: bus}
}

func (f *fixture) balance(t *testing.T, userID int64) money.Amount {
	t.Helper()
	b, err := infrarepo.NewBalanceRepository(f.db).Read(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) count(t *testing.T, eventType string) int {
	n := 0
	for _, e := range f.bus.Published() {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

func credits(v float64) money.Amount {
	return money.MustParse(v, money.CRD)
}

func debit(op string, userID int64, amount money.Amount) ledger.ApplyRequest {
	return ledger.ApplyRequest{
		OperationID: op,
		UserID:      userID,
		Amount:      amount,
		Direction:   credit.Debit,
		Category:    credit.CategoryImageGen,
	}
}

func topUp(op string, userID int64, amount money.Amount) ledger.ApplyRequest {
	return ledger.ApplyRequest{
		OperationID: op,
		UserID:      userID,
		Amount:      amount,
		Direction:   credit.Credit,
		Category:    credit.CategoryPurchase,
	}
}

func TestApply_SpendScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	_, err := f.svc.Apply(ctx, topUp("seed", 1, credits(50)))
	require.NoError(t, err)

	res, err := f.svc.Apply(ctx, debit("op-1", 1, credits(20)))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, credits(30), res.NewBalance)

	again, err := f.svc.Apply(ctx, debit("op-1", 1, credits(20)))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.TransactionID, again.TransactionID)
	assert.Equal(t, credits(30), again.NewBalance)
	assert.Equal(t, credits(30), f.balance(t, 1))

	_, err = f.svc.Apply(ctx, debit("op-2", 1, credits(40)))
	assert.ErrorIs(t, err, credit.ErrInsufficientFunds)
	assert.Equal(t, credits(30), f.balance(t, 1))

	rejected, err := f.svc.Find(ctx, 1, "op-2")
	require.NoError(t, err)
	assert.Equal(t, credit.StatusFailed, rejected.Status)
	assert.Equal(t, credit.ReasonInsufficientFunds, rejected.FailureReason)

	// The recorded rejection is replayed, even after a top-up.
	_, err = f.svc.Apply(ctx, topUp("seed-2", 1, credits(100)))
	require.NoError(t, err)
	_, err = f.svc.Apply(ctx, debit("op-2", 1, credits(40)))
	assert.ErrorIs(t, err, credit.ErrInsufficientFunds)

	assert.Equal(t, 3, f.count(t, events.BalanceChangedType))
	assert.Equal(t, 1, f.count(t, events.TransactionRejectedType))
}

func TestApply_ConflictingReuseOfOperationID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	_, err := f.svc.Apply(ctx, topUp("seed", 1, credits(50)))
	require.NoError(t, err)
	_, err = f.svc.Apply(ctx, debit("op-1", 1, credits(20)))
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, debit("op-1", 1, credits(25)))
	assert.ErrorIs(t, err, credit.ErrDuplicateOperation)

	conflicting := debit("op-1", 1, credits(20))
	conflicting.Direction = credit.Credit
	_, err = f.svc.Apply(ctx, conflicting)
	assert.ErrorIs(t, err, credit.ErrDuplicateOperation)

	assert.Equal(t, credits(30), f.balance(t, 1))
}

func TestApply_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	_, err := f.svc.Apply(ctx, topUp("seed", 1, credits(10)))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		successes int
		rejected  int
		mu        sync.Mutex
	)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.Apply(ctx, debit(fmt.Sprintf("race-%d", i), 1, credits(8)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, credit.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, credits(2), f.balance(t, 1))
}

func TestApply_ConcurrentRetriesApplyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Apply(ctx, topUp("bonus-1", 1, credits(5)))
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, credits(5), f.balance(t, 1))
	assert.Equal(t, 1, f.count(t, events.BalanceChangedType))
}

func TestApply_Validation(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ledger.ApplyRequest
		want error
	}{
		{"zero amount", debit("op", 1, 0), credit.ErrInvalidAmount},
		{"negative amount", debit("op", 1, -5), credit.ErrInvalidAmount},
		{"empty operation", debit("", 1, 5), credit.ErrInvalidRequest},
		{"bad user", debit("op", 0, 5), credit.ErrInvalidRequest},
		{"bad direction", ledger.ApplyRequest{OperationID: "op", UserID: 1, Amount: 5, Direction: "SIDEWAYS", Category: "x"}, credit.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Apply(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.bus.Published())
}

func TestApply_BypassPolicy(t *testing.T) {
	ctx := context.Background()

	strict := newFixture(t, nil, nil)
	req := debit("adj-1", 1, credits(5))
	req.Bypass = true
	_, err := strict.svc.Apply(ctx, req)
	assert.ErrorIs(t, err, credit.ErrBypassNotAllowed)

	lenient := newFixture(t, &config.Ledger{StorageTimeout: time.Second, AllowBypassDebit: true}, nil)
	res, err := lenient.svc.Apply(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, -credits(5), res.NewBalance)

	tx, err := lenient.svc.Find(ctx, 1, "adj-1")
	require.NoError(t, err)
	assert.True(t, tx.Bypass)
}

func TestApply_StorageFailureIsRetryable(t *testing.T) {
	f := newFixture(t, nil, nil)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.svc.Apply(context.Background(), topUp("seed", 1, credits(1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, credit.ErrStorageFailure)
	assert.True(t, credit.IsRetryable(err))

	// The user is told to try again.
	published := f.bus.Published()
	require.Len(t, published, 1)
	rejected, ok := published[0].(events.TransactionRejected)
	require.True(t, ok)
	assert.Equal(t, credit.ReasonStorageFailure, rejected.Reason)
	assert.Equal(t, "seed", rejected.OperationID)
	assert.Equal(t, int64(1), rejected.UserID)
}

func TestApply_CallerCancellationDoesNotAbortSharedWork(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Apply(ctx, topUp("bonus-1", 1, credits(5)))
	if err != nil {
		assert.ErrorIs(t, err, credit.ErrStorageFailure)
	}

	assert.Eventually(t, func() bool {
		b, err := infrarepo.NewBalanceRepository(f.db).Read(context.Background(), 1)
		return err == nil && b == credits(5)
	}, 5*time.Second, 10*time.Millisecond)

	_, err = f.svc.Apply(context.Background(), topUp("bonus-1", 1, credits(5)))
	require.NoError(t, err)
	assert.Equal(t, credits(5), f.balance(t, 1))
}

func TestCompletePending_RequiresPendingRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	_, err := f.svc.CompletePending(ctx, topUp("inv-missing", 1, credits(5)))
	assert.ErrorIs(t, err, credit.ErrNotFound)

	_, err = f.svc.Find(ctx, 1, "inv-missing")
	assert.ErrorIs(t, err, credit.ErrNotFound, "nothing is inserted")
	assert.Equal(t, money.Amount(0), f.balance(t, 1))
}

type extenderMock struct {
	mock.Mock
}

func (m *extenderMock) Extend(ctx context.Context, userID int64, tier string, txID uuid.UUID) (*credit.Subscription, error) {
	args := m.Called(ctx, userID, tier, txID)
	sub, _ := args.Get(0).(*credit.Subscription)
	return sub, args.Error(1)
}

func TestApply_SubscriptionPurchaseExtendsAfterCommit(t *testing.T) {
	ctx := context.Background()
	ext := &extenderMock{}
	f := newFixture(t, nil, ext)

	req := ledger.ApplyRequest{
		OperationID: "sub-1",
		UserID:      1,
		Amount:      credits(100),
		Direction:   credit.Credit,
		Category:    credit.CategorySubscriptionPurchase,
		Metadata:    credit.Metadata{SubscriptionTier: "pro"},
	}

	ext.On("Extend", mock.Anything, int64(1), "pro", mock.AnythingOfType("uuid.UUID")).
		Return(nil, errors.New("subscriptions unavailable")).Once()
	res, err := f.svc.Apply(ctx, req)
	require.NoError(t, err, "the credit commits even when the extension fails")
	assert.Error(t, res.SubscriptionErr)
	assert.Equal(t, credits(100), f.balance(t, 1))

	ext.On("Extend", mock.Anything, int64(1), "pro", res.TransactionID).
		Return(&credit.Subscription{UserID: 1, Tier: "pro"}, nil).Once()
	again, err := f.svc.Apply(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.NoError(t, again.SubscriptionErr)
	assert.Equal(t, credits(100), f.balance(t, 1))

	ext.AssertExpectations(t)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &config.Ledger{StorageTimeout: time.Second, HistoryLimit: 2}, nil)
	for i := range 3 {
		_, err := f.svc.Apply(ctx, topUp(fmt.Sprintf("t-%d", i), 1, credits(1)))
		require.NoError(t, err)
	}

	list, err := f.svc.History(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.Find(ctx, 1, "missing")
	assert.ErrorIs(t, err, credit.ErrNotFound)
}
