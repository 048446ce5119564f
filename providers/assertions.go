package providers

import "github.com/emucore/debugsock/src/protocol"

// Compile-time interface assertions.
var (
	_ protocol.Transport = (*wsTransport)(nil)
	_ protocol.Sender    = (*wsTransport)(nil)
)
