// Package eventbus defines the in-process publish/subscribe contract used to
// fan out ledger events after a commit.
package eventbus

import "context"

// Event is anything with a stable type name.
type Event interface {
	Type() string
}

// HandlerFunc handles one event. Returned errors are logged by the bus and
// never reach the emitter.
type HandlerFunc func(ctx context.Context, e Event) error

// Bus registers handlers and dispatches events to them.
type Bus interface {
	Register(eventType string, handler HandlerFunc)
	Emit(ctx context.Context, event Event) error
}
