package protocol

import (
	"encoding/json"
	"time"
)

// Event names the engine emits on its own. The cpu names double as
// request events: the execution-control module binds handlers under
// them, so a request and its matching spontaneous event share a name.
const (
	EventError      = "error"
	EventLog        = "log"
	EventGameStart  = "game.start"
	EventGameQuit   = "game.quit"
	EventSteppingAt = "cpu.stepping"
	EventResumed    = "cpu.resume"
)

// Fixed protocol error messages. The exact strings are part of the
// wire contract and asserted by clients.
const (
	MsgInvalidJSON  = "Bad message: invalid JSON"
	MsgNoEvent      = "Bad message: no event property"
	MsgUnknownEvent = "Bad message: unknown event"
	MsgBadMessage   = "Bad message"
)

// ErrorEvent reports a protocol or handler failure to the client.
type ErrorEvent struct {
	Event   string          `json:"event" jsonschema:"required"`
	Message string          `json:"message" jsonschema:"required"`
	Level   Level           `json:"level" jsonschema:"required"`
	Ticket  json.RawMessage `json:"ticket,omitempty"`
}

// LogEvent forwards one host log line to the client.
type LogEvent struct {
	Event     string `json:"event" jsonschema:"required"`
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	Channel   string `json:"channel"`
	Message   string `json:"message"`
}

// NewLogEvent stamps a host log line with the log event name.
func NewLogEvent(when time.Time, level Level, channel, message string) LogEvent {
	return LogEvent{
		Event:     EventLog,
		Timestamp: when.Format(time.RFC3339Nano),
		Level:     level,
		Channel:   channel,
		Message:   message,
	}
}

// GameStartEvent announces that a title became live.
type GameStartEvent struct {
	Event string   `json:"event" jsonschema:"required"`
	Game  GameBody `json:"game"`
}

// GameQuitEvent announces that the live title ended.
type GameQuitEvent struct {
	Event string `json:"event" jsonschema:"required"`
}

// GameBody identifies a title in game events and responses.
type GameBody struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version string `json:"version,omitempty"`
}

// SteppingEvent announces that the core entered or advanced a step.
type SteppingEvent struct {
	Event   string `json:"event" jsonschema:"required"`
	PC      uint32 `json:"pc"`
	Counter uint64 `json:"counter"`
}

// ResumeEvent announces that the core left stepping.
type ResumeEvent struct {
	Event string `json:"event" jsonschema:"required"`
}
