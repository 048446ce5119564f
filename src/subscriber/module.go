// Package subscriber holds the event modules a connection subscribes
// to at setup. Each module binds its request handlers into the
// connection's dispatch table and lives exactly as long as the
// connection.
package subscriber

import "github.com/emucore/debugsock/src/dispatch"

// Module is one per-connection unit of debugger functionality.
type Module interface {
	// Bind registers the module's event handlers. A binding error
	// fails connection setup before any frame is read.
	Bind(t *dispatch.Table) error
}

// Teardowner is implemented by modules that hold per-connection
// resources. The session calls Teardown once, in registration order,
// after the loop exits.
type Teardowner interface {
	Teardown()
}
