// debugctl sends one debugger request and prints every event received
// until the ticketed response arrives. With -listen it stays connected
// and streams spontaneous events instead.
//
//	debugctl -url ws://localhost:45333/debugger cpu.status
//	debugctl game.status
//	debugctl -listen
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const subprotocol = "debugger.emucore.org"

func main() {
	var (
		rawURL  string
		timeout time.Duration
		listen  bool
	)
	flag.StringVar(&rawURL, "url", "ws://localhost:45333/debugger", "debugger WebSocket URL")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "wait bound for the ticketed response")
	flag.BoolVar(&listen, "listen", false, "stay connected and print spontaneous events")
	flag.Parse()

	if flag.NArg() == 0 && !listen {
		fmt.Fprintln(os.Stderr, "usage: debugctl [flags] <event> [key=value ...]")
		fmt.Fprintln(os.Stderr, "       debugctl [flags] -listen")
		flag.PrintDefaults()
		os.Exit(2)
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{subprotocol},
		HandshakeTimeout: timeout,
	}
	conn, _, err := dialer.Dial(rawURL, nil)
	if err != nil {
		fatal("dial %s: %v", rawURL, err)
	}
	defer conn.Close()

	if flag.NArg() > 0 {
		if err := request(conn, flag.Arg(0), flag.Args()[1:], timeout); err != nil {
			fatal("%v", err)
		}
	}
	if listen {
		stream(conn)
	}
}

// request sends one event and reads until its ticket comes back.
// Everything received along the way is printed, so spontaneous events
// interleaved with the response are not lost.
func request(conn *websocket.Conn, event string, params []string, timeout time.Duration) error {
	ticket := uuid.New().String()
	body, err := buildRequest(event, ticket, params)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Println(string(data))
		if gjson.GetBytes(data, "ticket").Str != ticket {
			continue
		}
		if gjson.GetBytes(data, "event").Str == "error" {
			return fmt.Errorf("%s", gjson.GetBytes(data, "message").Str)
		}
		return nil
	}
}

// buildRequest assembles the request body. Values that parse as JSON
// are set raw, so numbers, booleans, and objects survive; anything
// else becomes a string.
func buildRequest(event, ticket string, params []string) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "event", event); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "ticket", ticket); err != nil {
		return nil, err
	}
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("bad parameter %q, want key=value", p)
		}
		if gjson.Valid(value) {
			body, err = sjson.SetRawBytes(body, key, []byte(value))
		} else {
			body, err = sjson.SetBytes(body, key, value)
		}
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p, err)
		}
	}
	return body, nil
}

// stream prints incoming events until interrupted, then runs the close
// handshake so the server tears the session down cleanly.
func stream(conn *websocket.Conn) {
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		fatal("clear deadline: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err,
					websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					fmt.Fprintf(os.Stderr, "debugctl: read: %v\n", err)
				}
				return
			}
			fmt.Println(string(data))
		}
	}()

	select {
	case <-interrupt:
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	case <-done:
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "debugctl: "+format+"\n", args...)
	os.Exit(1)
}
