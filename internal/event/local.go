package event

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Listener handles one dispatched event.
type Listener func(ctx context.Context, ev *UpdateReceived) error

// Local is an in-process, synchronous Dispatcher.
type Local struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

// Compile-time interface check.
var _ Dispatcher = (*Local)(nil)

// NewLocal creates a dispatcher with no listeners.
func NewLocal() *Local {
	return &Local{listeners: make(map[string][]Listener)}
}

// Register adds a listener for name. Listeners run in registration order.
func (d *Local) Register(name string, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = append(d.listeners[name], l)
}

// Dispatch calls every listener for name on the calling goroutine and stops
// at the first error.
func (d *Local) Dispatch(ctx context.Context, name string, ev *UpdateReceived) error {
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners[name]...)
	d.mu.RUnlock()

	log.Debug().Str("event", name).Int("listeners", len(listeners)).Msg("Dispatching event")
	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// LogListener logs the notification object and change fields.
func LogListener(ctx context.Context, ev *UpdateReceived) error {
	var n Notification
	if err := ev.Decode(&n); err != nil {
		log.Warn().Err(err).Int("bodySize", len(ev.Content())).Msg("Update is not a Graph notification")
		return nil
	}
	fields := make([]string, 0)
	for _, e := range n.Entry {
		for _, c := range e.Changes {
			fields = append(fields, c.Field)
		}
	}
	log.Info().
		Str("object", n.Object).
		Int("entries", len(n.Entry)).
		Strs("fields", fields).
		Msg("Update received")
	return nil
}
