// Package app builds the services and connects them through the event bus.
package app

import (
	"context"

	"github.com/amirasaad/creditcore/pkg/domain/events"
	"github.com/amirasaad/creditcore/pkg/eventbus"
	"github.com/amirasaad/creditcore/pkg/notification"
)

// setupEventBus registers the post-commit handlers: local cache
// invalidation first, then the cross-instance broadcast, then notifications.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	if bus == nil {
		return
	}
	bus.Register(events.BalanceChangedType, a.BalanceService.HandleBalanceChanged)

	if inv := a.Deps.Invalidator; inv != nil {
		bus.Register(events.BalanceChangedType, func(ctx context.Context, e eventbus.Event) error {
			changed, ok := e.(events.BalanceChanged)
			if !ok {
				return nil
			}
			return inv.Publish(ctx, changed.UserID)
		})
	}

	if a.Deps.Dispatcher != nil {
		locale := "en"
		if a.Config.Notify != nil {
			locale = a.Config.Notify.Locale
		}
		notification.NewSubscriber(
			a.Deps.Dispatcher,
			notification.NewLocalizer(locale),
			a.Deps.Logger,
		).Register(bus)
	}
}
