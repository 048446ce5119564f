package providers

import (
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/emucore/debugsock/config"
	"github.com/emucore/debugsock/src/service"
)

func transportTestConfig() *config.Config {
	cfg := config.Default()
	cfg.PollIntervalMS = 1
	cfg.CloseGraceSec = 1
	return cfg
}

// startServer serves the upgrade handler on a loopback listener and
// returns the engine with the dial URL.
func startServer(t *testing.T, cfg *config.Config) (*service.Engine, string) {
	t.Helper()
	engine := service.New(cfg, service.Options{Core: idleCore{}, Game: idleGame{}}, zerolog.Nop())
	provider := New(engine, cfg, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &fasthttp.Server{Handler: provider.FastHTTPHandler()}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return engine, "ws://" + ln.Addr().String() + cfg.Path
}

func dialDebugger(t *testing.T, url, subprotocol string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{
		Subprotocols:     []string{subprotocol},
		HandshakeTimeout: 2 * time.Second,
	}
	conn, _, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// TestDrainClosesSilentPeer drains a live WebSocket whose peer never
// answers the close handshake. The read grace has to end the session;
// without it StopAllAndWait would block on the silent peer forever.
func TestDrainClosesSilentPeer(t *testing.T) {
	cfg := transportTestConfig()
	engine, url := startServer(t, cfg)
	conn := dialDebugger(t, url, cfg.Subprotocol)
	require.Equal(t, cfg.Subprotocol, conn.Subprotocol())

	// Swallow the server's close frame instead of echoing it.
	conn.SetCloseHandler(func(int, string) error { return nil })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"version","ticket":"v1"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "version", gjson.GetBytes(reply, "event").Str)
	assert.Equal(t, "v1", gjson.GetBytes(reply, "ticket").Str)
	require.Equal(t, 1, engine.Active())

	start := time.Now()
	done := make(chan struct{})
	go func() {
		engine.StopAllAndWait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("drain blocked on the silent peer")
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, cfg.CloseGrace())
	assert.Less(t, elapsed, cfg.CloseGrace()+2*time.Second)
	assert.Equal(t, 0, engine.Active())
	assert.False(t, engine.Draining())

	// The going-away close did reach the peer.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "want going-away close, got %v", err)
}

// TestSessionEndsOnClientClose drives the normal lifecycle over a real
// socket: the client starts the close handshake and the session winds
// down without a drain.
func TestSessionEndsOnClientClose(t *testing.T) {
	cfg := transportTestConfig()
	engine, url := startServer(t, cfg)
	conn := dialDebugger(t, url, cfg.Subprotocol)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"version"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "version", gjson.GetBytes(reply, "event").Str)
	require.Equal(t, 1, engine.Active())

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	require.Eventually(t, func() bool { return engine.Active() == 0 },
		2*time.Second, 5*time.Millisecond)
}
