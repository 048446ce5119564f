package broadcast

import (
	"encoding/json"

	"github.com/emucore/debugsock/src/host"
	"github.com/emucore/debugsock/src/protocol"
)

// Stepping watches the core's run state and emits cpu.stepping when
// the core halts or advances a step, and cpu.resume when it continues.
// The stepping counter catches step sequences faster than the poll
// interval: a step-and-halt between two passes still changes the
// counter, so the event is not lost.
type Stepping struct {
	core    host.Core
	primed  bool
	prev    host.RunState
	counter uint64
}

// NewStepping returns a broadcaster for core. The first pass primes
// the cursor, so a client attaching to an already-halted core gets an
// immediate cpu.stepping.
func NewStepping(core host.Core) *Stepping {
	return &Stepping{core: core}
}

// Broadcast emits at most one event per pass describing the latest
// state transition.
func (s *Stepping) Broadcast(out protocol.Sender) error {
	state := s.core.State()
	counter := s.core.SteppingCounter()

	var (
		data []byte
		err  error
	)
	switch {
	case state == host.StateStepping && (!s.primed || s.prev != host.StateStepping || counter != s.counter):
		data, err = json.Marshal(protocol.SteppingEvent{
			Event:   protocol.EventSteppingAt,
			PC:      s.core.PC(),
			Counter: counter,
		})
	case s.primed && s.prev == host.StateStepping && state == host.StateRunning:
		data, err = json.Marshal(protocol.ResumeEvent{Event: protocol.EventResumed})
	}

	s.primed = true
	s.prev = state
	s.counter = counter

	if err != nil || data == nil {
		return err
	}
	return out.Send(data)
}
