// Package broadcast emits spontaneous debugger events: messages the
// client never asked for, such as host log lines, title transitions,
// and stepping notifications.
//
// Each connection owns one instance of every broadcaster variant. The
// session loop polls them once per pass, so implementations need no
// internal locking for their own cursor state; only shared sources
// (the log feed) synchronize themselves.
package broadcast

import (
	"io"

	"github.com/emucore/debugsock/src/protocol"
)

// Broadcaster is polled once per connection-loop pass and may emit any
// number of pending spontaneous events. Events from one broadcaster
// keep their order; ordering across broadcasters is unspecified.
type Broadcaster interface {
	Broadcast(out protocol.Sender) error
}

// Broadcasters that hold resources on a shared source additionally
// implement io.Closer; the session releases them when the connection
// ends.

// Compile-time interface assertions.
var (
	_ Broadcaster = (*Log)(nil)
	_ Broadcaster = (*Game)(nil)
	_ Broadcaster = (*Stepping)(nil)
	_ io.Closer   = (*Log)(nil)
)
