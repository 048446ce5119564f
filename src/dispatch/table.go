// Package dispatch maps inbound event names to handlers and carries
// one request through its handler to exactly one terminal response.
package dispatch

import (
	"errors"
	"fmt"
)

// HandlerFunc consumes one request. Handlers reply through the request
// itself; a handler that sends nothing gets a default completion from
// Finish. A returned error with no terminal response sent yet becomes
// the request's error response.
type HandlerFunc func(*Request) error

// ErrDuplicateEvent reports a second registration under an event name.
// Event names come from independently developed modules, so a collision
// is a configuration error and connection setup fails on it.
var ErrDuplicateEvent = errors.New("event already registered")

// Table maps event names to handlers for one connection. It is built
// once at connection setup and never mutated afterwards, so lookups
// need no locking.
type Table struct {
	handlers map[string]HandlerFunc
}

// NewTable returns an empty dispatch table.
func NewTable() *Table {
	return &Table{handlers: make(map[string]HandlerFunc)}
}

// Bind registers a handler under an event name. Binding a name twice
// fails with ErrDuplicateEvent.
func (t *Table) Bind(event string, h HandlerFunc) error {
	if _, ok := t.handlers[event]; ok {
		return fmt.Errorf("%q: %w", event, ErrDuplicateEvent)
	}
	t.handlers[event] = h
	return nil
}

// Lookup returns the handler for an event name. A miss is not an error
// at this layer; the session loop reports it to the peer.
func (t *Table) Lookup(event string) (HandlerFunc, bool) {
	h, ok := t.handlers[event]
	return h, ok
}

// Len returns the number of registered events.
func (t *Table) Len() int {
	return len(t.handlers)
}
