package dispatch

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/emucore/debugsock/src/protocol"
)

// Request is one inbound debugger request on its way through a handler.
// It lives for a single dispatch: handlers must not retain it after
// returning. All replies it emits echo the request's ticket.
type Request struct {
	// Event is the parsed event name.
	Event string
	// Ticket is the raw correlation value, nil when the request had
	// none. It is echoed verbatim, never interpreted.
	Ticket json.RawMessage
	// Body is the full request message for handler-specific fields.
	Body []byte

	out       protocol.Sender
	responded bool
}

// NewRequest builds the context for one dispatch. The sender is the
// owning connection's output channel.
func NewRequest(event string, ticket json.RawMessage, body []byte, out protocol.Sender) *Request {
	return &Request{Event: event, Ticket: ticket, Body: body, out: out}
}

// Param reads a handler-specific field from the request body.
func (r *Request) Param(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// Respond sends the terminal success response. The payload must encode
// to a JSON object; the event name and ticket are stamped onto it.
func (r *Request) Respond(payload any) error {
	data, err := protocol.Encode(r.Event, payload, r.Ticket)
	if err != nil {
		return err
	}
	r.responded = true
	return r.out.Send(data)
}

// Partial sends an intermediate chunk under the request's event name
// without completing the request. Finish still emits the terminal
// default completion afterwards.
func (r *Request) Partial(payload any) error {
	data, err := protocol.Encode(r.Event, payload, r.Ticket)
	if err != nil {
		return err
	}
	return r.out.Send(data)
}

// Fail sends the terminal error response for this request.
func (r *Request) Fail(message string) error {
	data, err := protocol.ErrorBytes(message, protocol.LevelError, r.Ticket)
	if err != nil {
		return err
	}
	r.responded = true
	return r.out.Send(data)
}

// Responded reports whether a terminal response went out. The loop
// uses it to map a handler error onto the wire only when the handler
// did not already answer.
func (r *Request) Responded() bool {
	return r.responded
}

// Finish emits the default completion if the handler sent no terminal
// response. It is a no-op otherwise, so the loop can call it
// unconditionally after every handler.
func (r *Request) Finish() error {
	if r.responded {
		return nil
	}
	return r.Respond(nil)
}
