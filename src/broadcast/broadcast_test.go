package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/emucore/debugsock/src/host"
	"github.com/emucore/debugsock/src/protocol"
)

type captureSender struct {
	sent [][]byte
}

func (c *captureSender) Send(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.sent = append(c.sent, buf)
	return nil
}

type fakeCore struct {
	mu      sync.Mutex
	state   host.RunState
	counter uint64
	pc      uint32
}

func (c *fakeCore) State() host.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeCore) SteppingCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

func (c *fakeCore) PC() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pc
}

func (c *fakeCore) Break() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = host.StateStepping
	c.counter++
	return nil
}

func (c *fakeCore) StepInto() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pc += 4
	c.counter++
	return nil
}

func (c *fakeCore) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = host.StateRunning
	return nil
}

type fakeGame struct {
	mu   sync.Mutex
	info host.GameInfo
	live bool
}

func (g *fakeGame) Info() (host.GameInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.info, g.live
}

func (g *fakeGame) start(info host.GameInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.info = info
	g.live = true
}

func (g *fakeGame) quit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.info = host.GameInfo{}
	g.live = false
}

func TestLogFeedDeliversParsedLines(t *testing.T) {
	feed := NewLogFeed(4)
	tail := feed.Attach()
	defer feed.Detach(tail)

	n, err := feed.Write([]byte(`{"level":"warn","component":"jit","message":"block cache full"}`))
	require.NoError(t, err)
	assert.Equal(t, 63, n)

	entry, ok := tail.next()
	require.True(t, ok)
	assert.Equal(t, protocol.LevelWarn, entry.Level)
	assert.Equal(t, "jit", entry.Channel)
	assert.Equal(t, "block cache full", entry.Message)
	assert.False(t, entry.When.IsZero())

	_, ok = tail.next()
	assert.False(t, ok)
}

func TestLogFeedForwardsPlainLines(t *testing.T) {
	feed := NewLogFeed(4)
	tail := feed.Attach()
	defer feed.Detach(tail)

	_, err := feed.Write([]byte("plain text line"))
	require.NoError(t, err)

	entry, ok := tail.next()
	require.True(t, ok)
	assert.Equal(t, protocol.LevelInfo, entry.Level)
	assert.Equal(t, "host", entry.Channel)
	assert.Equal(t, "plain text line", entry.Message)
}

func TestLogFeedDropsWhenTailFull(t *testing.T) {
	feed := NewLogFeed(2)
	tail := feed.Attach()
	defer feed.Detach(tail)

	for i := 0; i < 5; i++ {
		_, err := feed.Write([]byte(fmt.Sprintf(`{"level":"info","message":"line %d"}`, i)))
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(3), tail.Dropped())

	entry, ok := tail.next()
	require.True(t, ok)
	assert.Equal(t, "line 0", entry.Message)
	entry, ok = tail.next()
	require.True(t, ok)
	assert.Equal(t, "line 1", entry.Message)
	_, ok = tail.next()
	assert.False(t, ok)
}

func TestLogFeedDetachStopsDelivery(t *testing.T) {
	feed := NewLogFeed(4)
	tail := feed.Attach()
	require.Equal(t, 1, feed.Tails())

	feed.Detach(tail)
	assert.Equal(t, 0, feed.Tails())

	_, err := feed.Write([]byte(`{"message":"after detach"}`))
	require.NoError(t, err)
	_, ok := tail.next()
	assert.False(t, ok)
}

func TestLogBroadcasterDrainsTail(t *testing.T) {
	feed := NewLogFeed(8)
	l := NewLog(feed)
	defer l.Close()

	_, err := feed.Write([]byte(`{"level":"debug","component":"io","message":"first"}`))
	require.NoError(t, err)
	_, err = feed.Write([]byte(`{"level":"error","message":"second"}`))
	require.NoError(t, err)

	out := &captureSender{}
	require.NoError(t, l.Broadcast(out))
	require.Len(t, out.sent, 2)

	first := out.sent[0]
	assert.Equal(t, "log", gjson.GetBytes(first, "event").Str)
	assert.Equal(t, int64(protocol.LevelDebug), gjson.GetBytes(first, "level").Int())
	assert.Equal(t, "io", gjson.GetBytes(first, "channel").Str)
	assert.Equal(t, "first", gjson.GetBytes(first, "message").Str)
	assert.True(t, gjson.GetBytes(first, "timestamp").Exists())

	second := out.sent[1]
	assert.Equal(t, int64(protocol.LevelError), gjson.GetBytes(second, "level").Int())
	assert.Equal(t, "host", gjson.GetBytes(second, "channel").Str)

	out.sent = nil
	require.NoError(t, l.Broadcast(out))
	assert.Empty(t, out.sent)
}

func TestLogBroadcasterCountsDrops(t *testing.T) {
	feed := NewLogFeed(2)
	l := NewLog(feed)
	defer l.Close()

	for i := 0; i < 5; i++ {
		_, err := feed.Write([]byte(fmt.Sprintf(`{"level":"info","message":"line %d"}`, i)))
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), l.Dropped())

	out := &captureSender{}
	require.NoError(t, l.Broadcast(out))
	assert.Len(t, out.sent, 2)
	assert.Equal(t, uint64(3), l.Dropped(), "draining the tail does not reset the counter")
}

func TestLogBroadcasterCloseDetaches(t *testing.T) {
	feed := NewLogFeed(8)
	l := NewLog(feed)
	require.Equal(t, 1, feed.Tails())
	require.NoError(t, l.Close())
	assert.Equal(t, 0, feed.Tails())
}

func TestGameBroadcasterEmitsTransitions(t *testing.T) {
	game := &fakeGame{}
	g := NewGame(game)
	out := &captureSender{}

	require.NoError(t, g.Broadcast(out))
	assert.Empty(t, out.sent)

	game.start(host.GameInfo{ID: "ULUS-10336", Title: "Crisis Core", Version: "1.01"})
	require.NoError(t, g.Broadcast(out))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "game.start", gjson.GetBytes(out.sent[0], "event").Str)
	assert.Equal(t, "ULUS-10336", gjson.GetBytes(out.sent[0], "game.id").Str)
	assert.Equal(t, "Crisis Core", gjson.GetBytes(out.sent[0], "game.title").Str)

	require.NoError(t, g.Broadcast(out))
	require.Len(t, out.sent, 1)

	game.quit()
	require.NoError(t, g.Broadcast(out))
	require.Len(t, out.sent, 2)
	assert.Equal(t, "game.quit", gjson.GetBytes(out.sent[1], "event").Str)
}

func TestGameBroadcasterSkipsCurrentStateOnAttach(t *testing.T) {
	game := &fakeGame{}
	game.start(host.GameInfo{ID: "ULUS-10041", Title: "GTA LCS"})

	g := NewGame(game)
	out := &captureSender{}
	require.NoError(t, g.Broadcast(out))
	assert.Empty(t, out.sent)

	game.quit()
	require.NoError(t, g.Broadcast(out))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "game.quit", gjson.GetBytes(out.sent[0], "event").Str)
}

func TestSteppingBroadcasterEmitsHaltStepResume(t *testing.T) {
	core := &fakeCore{state: host.StateRunning, pc: 0x8804000}
	s := NewStepping(core)
	out := &captureSender{}

	require.NoError(t, s.Broadcast(out))
	assert.Empty(t, out.sent)

	require.NoError(t, core.Break())
	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "cpu.stepping", gjson.GetBytes(out.sent[0], "event").Str)
	assert.Equal(t, int64(0x8804000), gjson.GetBytes(out.sent[0], "pc").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(out.sent[0], "counter").Int())

	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 1)

	require.NoError(t, core.StepInto())
	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 2)
	assert.Equal(t, "cpu.stepping", gjson.GetBytes(out.sent[1], "event").Str)
	assert.Equal(t, int64(0x8804004), gjson.GetBytes(out.sent[1], "pc").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(out.sent[1], "counter").Int())

	require.NoError(t, core.Resume())
	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 3)
	assert.Equal(t, "cpu.resume", gjson.GetBytes(out.sent[2], "event").Str)

	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 3)
}

func TestSteppingBroadcasterReportsHaltedCoreOnAttach(t *testing.T) {
	core := &fakeCore{state: host.StateRunning}
	require.NoError(t, core.Break())

	s := NewStepping(core)
	out := &captureSender{}
	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 1)
	assert.Equal(t, "cpu.stepping", gjson.GetBytes(out.sent[0], "event").Str)
}

func TestSteppingBroadcasterCatchesFastStepBursts(t *testing.T) {
	core := &fakeCore{state: host.StateRunning}
	s := NewStepping(core)
	out := &captureSender{}

	require.NoError(t, s.Broadcast(out))
	require.NoError(t, core.Break())
	require.NoError(t, core.StepInto())
	require.NoError(t, core.StepInto())

	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 1)
	assert.Equal(t, int64(3), gjson.GetBytes(out.sent[0], "counter").Int())

	require.NoError(t, core.StepInto())
	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 2)
	assert.Equal(t, int64(4), gjson.GetBytes(out.sent[1], "counter").Int())
}

func TestSteppingBroadcasterNoResumeAfterQuit(t *testing.T) {
	core := &fakeCore{state: host.StateStepping, counter: 1}
	s := NewStepping(core)
	out := &captureSender{}

	require.NoError(t, s.Broadcast(out))
	require.Len(t, out.sent, 1)

	core.mu.Lock()
	core.state = host.StateStopped
	core.mu.Unlock()

	require.NoError(t, s.Broadcast(out))
	assert.Len(t, out.sent, 1)
}
