package broadcast

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/emucore/debugsock/src/protocol"
)

// defaultTailDepth bounds how many log lines a slow connection can
// buffer before new lines are dropped for it.
const defaultTailDepth = 128

// Entry is one host log line as queued for debugger sessions.
type Entry struct {
	When    time.Time
	Level   protocol.Level
	Channel string
	Message string
}

// LogFeed fans host log lines out to connected debugger sessions. It
// implements io.Writer so the host can tee its zerolog output into it
// (zerolog.MultiLevelWriter(console, feed)); each Write is one
// rendered JSON log line.
//
// The feed is safe for concurrent use: the host logs from any
// goroutine while connection loops drain their tails.
type LogFeed struct {
	mu    sync.Mutex
	depth int
	tails map[*LogTail]struct{}
}

// NewLogFeed returns a feed whose tails buffer up to depth entries.
// A non-positive depth selects the default.
func NewLogFeed(depth int) *LogFeed {
	if depth <= 0 {
		depth = defaultTailDepth
	}
	return &LogFeed{
		depth: depth,
		tails: make(map[*LogTail]struct{}),
	}
}

// Write queues one rendered zerolog line for every attached tail.
// It never blocks the logging goroutine: full tails drop the line and
// count the loss.
func (f *LogFeed) Write(p []byte) (int, error) {
	entry := parseLine(p)

	f.mu.Lock()
	for t := range f.tails {
		select {
		case t.ch <- entry:
		default:
			t.dropped.Add(1)
		}
	}
	f.mu.Unlock()

	return len(p), nil
}

// Attach registers a new tail starting at the current end of the feed.
func (f *LogFeed) Attach() *LogTail {
	t := &LogTail{ch: make(chan Entry, f.depth)}
	f.mu.Lock()
	f.tails[t] = struct{}{}
	f.mu.Unlock()
	return t
}

// Detach unregisters a tail. Pending entries are discarded.
func (f *LogFeed) Detach(t *LogTail) {
	f.mu.Lock()
	delete(f.tails, t)
	f.mu.Unlock()
}

// Tails returns the number of attached tails.
func (f *LogFeed) Tails() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tails)
}

// LogTail is one session's cursor into the feed. Only the owning
// connection loop reads it.
type LogTail struct {
	ch      chan Entry
	dropped atomic.Uint64
}

// next pops the oldest pending entry without blocking.
func (t *LogTail) next() (Entry, bool) {
	select {
	case e := <-t.ch:
		return e, true
	default:
		return Entry{}, false
	}
}

// Dropped returns how many lines were discarded because the tail was
// full.
func (t *LogTail) Dropped() uint64 {
	return t.dropped.Load()
}

// parseLine extracts the fields the wire event needs from one rendered
// zerolog line. Lines that are not JSON objects (a misconfigured
// writer) are forwarded whole as info-level messages.
func parseLine(p []byte) Entry {
	entry := Entry{
		When:    time.Now(),
		Level:   protocol.LevelInfo,
		Channel: "host",
	}
	if !gjson.ValidBytes(p) {
		entry.Message = string(bytes.TrimRight(p, "\r\n"))
		return entry
	}
	entry.Level = protocol.LevelFromZerolog(gjson.GetBytes(p, "level").Str)
	entry.Message = gjson.GetBytes(p, "message").Str
	if comp := gjson.GetBytes(p, "component").Str; comp != "" {
		entry.Channel = comp
	}
	return entry
}
