package bridge

import (
	"sync/atomic"

	"github.com/emucore/debugsock/src/broadcast"
	"github.com/emucore/debugsock/src/protocol"
)

// Compile-time interface assertion.
var _ broadcast.Broadcaster = (*Notify)(nil)

// NotifyTail is one session's cursor into the injected-event stream.
// Only the owning connection loop reads it.
type NotifyTail struct {
	ch      chan []byte
	dropped atomic.Uint64
}

// next pops the oldest pending event without blocking.
func (t *NotifyTail) next() ([]byte, bool) {
	select {
	case data := <-t.ch:
		return data, true
	default:
		return nil, false
	}
}

// Dropped returns how many injected events were discarded because the
// tail was full.
func (t *NotifyTail) Dropped() uint64 {
	return t.dropped.Load()
}

// Notify forwards injected events to one connection. The session polls
// it like any other broadcaster.
type Notify struct {
	bridge *RedisBridge
	tail   *NotifyTail
}

// NewNotify attaches a tail to the bridge for the lifetime of the
// broadcaster.
func NewNotify(b *RedisBridge) *Notify {
	return &Notify{bridge: b, tail: b.Attach()}
}

// Broadcast sends every injected event queued since the previous pass.
func (n *Notify) Broadcast(out protocol.Sender) error {
	for {
		data, ok := n.tail.next()
		if !ok {
			return nil
		}
		if err := out.Send(data); err != nil {
			return err
		}
	}
}

// Dropped reports how many injected events this connection missed.
func (n *Notify) Dropped() uint64 {
	return n.tail.Dropped()
}

// Close detaches the tail from the bridge.
func (n *Notify) Close() error {
	n.bridge.Detach(n.tail)
	return nil
}
