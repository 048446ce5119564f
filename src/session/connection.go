// Package session runs the per-connection debugger loop: one goroutine
// per connection that dispatches inbound requests, polls broadcasters
// for spontaneous events, and watches for a global stop.
//
// All outbound traffic for a connection goes through the loop
// goroutine, so responses to one request are contiguous and ordered,
// and senders need no locking.
package session

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/emucore/debugsock/src/broadcast"
	"github.com/emucore/debugsock/src/dispatch"
	"github.com/emucore/debugsock/src/protocol"
	"github.com/emucore/debugsock/src/subscriber"
)

// defaultPollInterval paces broadcaster polling when the connection is
// idle, roughly matching a 60Hz frame loop.
const defaultPollInterval = 16 * time.Millisecond

// Config assembles one session.
type Config struct {
	// Transport is the connection. Required.
	Transport protocol.Transport

	// Out overrides where responses and events are written. Leave nil
	// to write straight to the transport; the engine uses it to tee
	// traffic into the bridge.
	Out protocol.Sender

	// Modules bind the connection's request handlers, in order.
	Modules []subscriber.Module

	// Broadcasters are polled once per loop pass, in order.
	Broadcasters []broadcast.Broadcaster

	// Coordinator carries the global stop. Leave nil to run unmanaged;
	// the session then only ends with its transport.
	Coordinator *Coordinator

	// PollInterval overrides the idle poll pace. Zero selects the
	// default.
	PollInterval time.Duration

	Logger zerolog.Logger
}

// Session is one debugger connection's state and loop.
type Session struct {
	transport protocol.Transport
	out       protocol.Sender
	table     *dispatch.Table
	modules   []subscriber.Module
	casters   []broadcast.Broadcaster
	coord     *Coordinator
	poll      time.Duration
	log       zerolog.Logger
}

// New binds every module into a fresh dispatch table. A binding
// conflict fails setup before any frame is read; the transport is left
// for the caller to close.
func New(cfg Config) (*Session, error) {
	table := dispatch.NewTable()
	for _, m := range cfg.Modules {
		if err := m.Bind(table); err != nil {
			return nil, err
		}
	}

	out := cfg.Out
	if out == nil {
		out = cfg.Transport
	}
	coord := cfg.Coordinator
	if coord == nil {
		coord = NewCoordinator()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &Session{
		transport: cfg.Transport,
		out:       out,
		table:     table,
		modules:   cfg.Modules,
		casters:   cfg.Broadcasters,
		coord:     coord,
		poll:      poll,
		log:       cfg.Logger,
	}, nil
}

// Run drives the connection until its frame stream ends, then closes
// the transport and tears the modules down. It blocks; the engine
// calls it on the connection's goroutine. The session counts itself
// with the coordinator for exactly the duration of the loop, so a
// drain completes only after teardown.
//
// Each pass handles at most one inbound frame, then polls every
// broadcaster, then reacts to a pending stop request with a graceful
// close. The loop keeps serving requests while the close handshake
// completes.
func (s *Session) Run() {
	s.coord.ConnectionOpened()
	defer s.coord.ConnectionClosed()
	defer s.teardown()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	frames := s.transport.Frames()
	draining := false

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			s.handleFrame(frame)
		case <-ticker.C:
		}

		s.pollBroadcasters()

		if !draining && s.coord.StopRequested() {
			draining = true
			if err := s.transport.CloseGoingAway(); err != nil {
				s.log.Debug().Err(err).Msg("going-away close failed")
			}
		}
	}
}

// handleFrame validates one inbound frame and carries it through its
// handler to exactly one terminal response.
func (s *Session) handleFrame(frame protocol.Frame) {
	if !frame.Text {
		s.sendError(protocol.MsgBadMessage, nil)
		return
	}
	if !gjson.ValidBytes(frame.Data) {
		s.sendError(protocol.MsgInvalidJSON, nil)
		return
	}

	ticket := protocol.Ticket(frame.Data)
	event := gjson.GetBytes(frame.Data, "event")
	if !event.Exists() || event.Type != gjson.String {
		s.sendError(protocol.MsgNoEvent, ticket)
		return
	}

	req := dispatch.NewRequest(event.Str, ticket, frame.Data, s.out)
	h, ok := s.table.Lookup(event.Str)
	if !ok {
		if err := req.Fail(protocol.MsgUnknownEvent); err != nil {
			s.log.Debug().Err(err).Str("event", event.Str).Msg("error response failed")
		}
		return
	}

	if err := h(req); err != nil && !req.Responded() {
		if failErr := req.Fail(err.Error()); failErr != nil {
			s.log.Debug().Err(failErr).Str("event", event.Str).Msg("error response failed")
		}
	}
	if err := req.Finish(); err != nil {
		s.log.Debug().Err(err).Str("event", event.Str).Msg("completion failed")
	}
}

func (s *Session) pollBroadcasters() {
	for _, b := range s.casters {
		if err := b.Broadcast(s.out); err != nil {
			s.log.Debug().Err(err).Msg("broadcast failed")
		}
	}
}

func (s *Session) sendError(message string, ticket json.RawMessage) {
	data, err := protocol.ErrorBytes(message, protocol.LevelError, ticket)
	if err != nil {
		s.log.Error().Err(err).Msg("error event encode failed")
		return
	}
	if err := s.out.Send(data); err != nil {
		s.log.Debug().Err(err).Msg("error response failed")
	}
}

// teardown closes the transport, then releases modules in registration
// order and broadcaster resources.
func (s *Session) teardown() {
	if err := s.transport.Close(); err != nil {
		s.log.Debug().Err(err).Msg("transport close failed")
	}
	for _, m := range s.modules {
		if td, ok := m.(subscriber.Teardowner); ok {
			td.Teardown()
		}
	}
	for _, b := range s.casters {
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.log.Debug().Err(err).Msg("broadcaster close failed")
			}
		}
	}
}
