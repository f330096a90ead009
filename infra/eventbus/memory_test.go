package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/amirasaad/creditcore/pkg/domain/events"
	"github.com/amirasaad/creditcore/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBus_EmitIsSynchronous(t *testing.T) {
	bus := NewWithMemory(slog.Default(), WithRecording())
	var got []int64

	bus.Register(events.BalanceChangedType, func(_ context.Context, e eventbus.Event) error {
		got = append(got, e.(events.BalanceChanged).UserID)
		return nil
	})

	require.NoError(t, bus.Emit(context.Background(), events.BalanceChanged{UserID: 7}))
	assert.Equal(t, []int64{7}, got, "handler ran before Emit returned")
	assert.Len(t, bus.Published(), 1)
}

func TestMemoryEventBus_HandlerFailureIsIsolated(t *testing.T) {
	bus := NewWithMemory(slog.Default(), WithRecording())
	calls := 0

	bus.Register(events.PaymentFailedType, func(context.Context, eventbus.Event) error {
		return errors.New("downstream unavailable")
	})
	bus.Register(events.PaymentFailedType, func(context.Context, eventbus.Event) error {
		panic("boom")
	})
	bus.Register(events.PaymentFailedType, func(context.Context, eventbus.Event) error {
		calls++
		return nil
	})

	assert.NoError(t, bus.Emit(context.Background(), events.PaymentFailed{InvoiceRef: "inv-1"}))
	assert.Equal(t, 1, calls)

	bus.ClearPublished()
	assert.Empty(t, bus.Published())
}

func TestMemoryEventBus_DoesNotRetainEventsByDefault(t *testing.T) {
	bus := NewWithMemory(slog.Default())
	handled := 0
	bus.Register(events.BalanceChangedType, func(context.Context, eventbus.Event) error {
		handled++
		return nil
	})

	for i := range 500 {
		require.NoError(t, bus.Emit(context.Background(), events.BalanceChanged{UserID: int64(i + 1)}))
	}
	assert.Equal(t, 500, handled)
	assert.Empty(t, bus.Published())
}
