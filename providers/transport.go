package providers

import (
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/emucore/debugsock/src/protocol"
)

// wsTransport adapts an upgraded WebSocket connection to
// protocol.Transport. A read pump feeds inbound frames to the session
// loop; all writes happen on the loop goroutine, so no write lock is
// needed.
type wsTransport struct {
	conn         *websocket.Conn
	frames       chan protocol.Frame
	done         chan struct{}
	closeOnce    sync.Once
	closeErr     error
	writeTimeout time.Duration
	closeGrace   time.Duration
}

func newWSTransport(conn *websocket.Conn, writeTimeout, closeGrace time.Duration) *wsTransport {
	t := &wsTransport{
		conn:         conn,
		frames:       make(chan protocol.Frame, 16),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		closeGrace:   closeGrace,
	}
	go t.readPump()
	return t
}

// readPump moves inbound messages onto the frame channel until the
// connection ends for any reason, then closes the channel.
func (t *wsTransport) readPump() {
	defer close(t.frames)
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		frame := protocol.Frame{Text: msgType == websocket.TextMessage, Data: data}
		select {
		case t.frames <- frame:
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) Frames() <-chan protocol.Frame {
	return t.frames
}

func (t *wsTransport) Send(data []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// CloseGoingAway starts the close handshake and bounds how long the
// peer may take to acknowledge; a silent peer times the read out and
// ends the frame stream.
func (t *wsTransport) CloseGoingAway() error {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	deadline := time.Now().Add(t.writeTimeout)
	if err := t.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		return err
	}
	return t.conn.SetReadDeadline(time.Now().Add(t.closeGrace))
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
