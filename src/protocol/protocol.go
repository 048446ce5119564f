// Package protocol defines the wire-level contracts of the debugger
// channel: message envelopes, severity levels, and the transport
// abstraction the session loop runs against.
//
// Every message in either direction is a JSON object with an "event"
// field. Requests may carry a "ticket" value which is echoed verbatim
// in responses and errors produced for that request. Spontaneous
// events never carry a ticket.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Level is the wire severity attached to error events.
type Level int

// Wire severity values. Lower is more prominent.
const (
	LevelNotice  Level = 1
	LevelError   Level = 2
	LevelWarn    Level = 3
	LevelInfo    Level = 4
	LevelDebug   Level = 5
	LevelVerbose Level = 6
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelNotice:
		return "notice"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelVerbose:
		return "verbose"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// LevelFromZerolog maps a zerolog level name to its wire value.
// Unknown names map to LevelInfo.
func LevelFromZerolog(name string) Level {
	switch name {
	case "error", "fatal", "panic":
		return LevelError
	case "warn":
		return LevelWarn
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "trace":
		return LevelVerbose
	default:
		return LevelInfo
	}
}

// Sender writes one outbound message to the peer. Implementations are
// not required to be safe for concurrent use; the session loop is the
// only caller for a live connection.
type Sender interface {
	Send(data []byte) error
}

// Frame is one inbound message as delivered by the transport.
type Frame struct {
	// Text reports whether the frame arrived as a text message.
	// Anything else is rejected before dispatch.
	Text bool
	Data []byte
}

// Transport is the message-oriented duplex channel behind a debugger
// connection. The handshake that produces one is out of scope; the
// session loop only consumes the framed stream.
type Transport interface {
	Sender

	// Frames returns the inbound stream. The channel is closed when
	// the peer closes, the link fails, or a local close completes.
	Frames() <-chan Frame

	// CloseGoingAway starts a graceful close, telling the peer the
	// server is shutting down. The frame stream still terminates
	// through Frames.
	CloseGoingAway() error

	// Close tears the connection down immediately.
	Close() error
}

// Ticket extracts the raw "ticket" value from a request body, or nil
// when absent. The bytes are echoed back exactly as received.
func Ticket(data []byte) json.RawMessage {
	res := gjson.GetBytes(data, "ticket")
	if !res.Exists() {
		return nil
	}
	return json.RawMessage(res.Raw)
}

// Stamp injects the envelope fields into an encoded JSON object:
// "event" is always set, "ticket" only when non-nil.
func Stamp(payload []byte, event string, ticket json.RawMessage) ([]byte, error) {
	out, err := sjson.SetBytes(payload, "event", event)
	if err != nil {
		return nil, fmt.Errorf("stamping event: %w", err)
	}
	if ticket != nil {
		out, err = sjson.SetRawBytes(out, "ticket", ticket)
		if err != nil {
			return nil, fmt.Errorf("stamping ticket: %w", err)
		}
	}
	return out, nil
}

// Encode marshals a handler payload and stamps the envelope onto it.
// A nil payload produces the bare envelope. The payload must encode to
// a JSON object; the envelope fields override any the payload carried.
func Encode(event string, payload any, ticket json.RawMessage) ([]byte, error) {
	body := []byte("{}")
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %q payload: %w", event, err)
		}
		if len(body) == 0 || body[0] != '{' {
			return nil, fmt.Errorf("encoding %q payload: not a JSON object", event)
		}
	}
	return Stamp(body, event, ticket)
}

// ErrorBytes builds the error event sent for protocol and handler
// failures. The ticket, when present, is echoed verbatim.
func ErrorBytes(message string, level Level, ticket json.RawMessage) ([]byte, error) {
	ev := ErrorEvent{
		Event:   EventError,
		Message: message,
		Level:   level,
		Ticket:  ticket,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding error event: %w", err)
	}
	return data, nil
}
