package broadcast

import (
	"encoding/json"

	"github.com/emucore/debugsock/src/protocol"
)

// Log drains this connection's tail of the shared host log feed and
// forwards each pending line as a log event.
type Log struct {
	feed *LogFeed
	tail *LogTail
}

// NewLog attaches a tail to feed for the lifetime of the broadcaster.
func NewLog(feed *LogFeed) *Log {
	return &Log{
		feed: feed,
		tail: feed.Attach(),
	}
}

// Broadcast sends every log line queued since the previous pass.
func (l *Log) Broadcast(out protocol.Sender) error {
	for {
		entry, ok := l.tail.next()
		if !ok {
			return nil
		}
		data, err := json.Marshal(protocol.NewLogEvent(entry.When, entry.Level, entry.Channel, entry.Message))
		if err != nil {
			return err
		}
		if err := out.Send(data); err != nil {
			return err
		}
	}
}

// Dropped reports how many lines this connection missed because it
// drained too slowly.
func (l *Log) Dropped() uint64 {
	return l.tail.Dropped()
}

// Close detaches the tail from the feed.
func (l *Log) Close() error {
	l.feed.Detach(l.tail)
	return nil
}
