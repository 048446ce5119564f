// Package host declares the contracts the embedding application
// provides to the debugger engine. The engine never owns host state;
// implementations synchronize themselves, and the engine only reads
// through these interfaces from connection goroutines.
package host

// RunState describes the execution state of the emulated core.
type RunState int

const (
	// StateStopped means no title is live; execution control is
	// unavailable.
	StateStopped RunState = iota
	// StateRunning means the core is executing freely.
	StateRunning
	// StateStepping means the core is halted under debugger control.
	StateStepping
)

// String returns the lowercase name of the state.
func (s RunState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStepping:
		return "stepping"
	default:
		return "unknown"
	}
}

// Core is the execution-control surface of the host. All methods must
// be safe for concurrent use; several debugger connections may share
// one core.
type Core interface {
	// State reports the current execution state.
	State() RunState

	// SteppingCounter increments every time the core enters stepping
	// or advances one step. Broadcasters watch it to detect steps
	// without missing fast sequences.
	SteppingCounter() uint64

	// PC returns the current program counter.
	PC() uint32

	// Break halts free execution and enters stepping.
	Break() error

	// StepInto executes a single instruction while stepping.
	StepInto() error

	// Resume leaves stepping and continues free execution.
	Resume() error
}

// GameInfo identifies the loaded title.
type GameInfo struct {
	ID      string
	Title   string
	Version string
}

// Game is the title-metadata surface of the host.
type Game interface {
	// Info returns the loaded title and true, or ok=false when no
	// title is live.
	Info() (GameInfo, bool)
}
