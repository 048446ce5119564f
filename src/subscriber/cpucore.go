package subscriber

import (
	"github.com/emucore/debugsock/src/dispatch"
	"github.com/emucore/debugsock/src/host"
	"github.com/emucore/debugsock/src/protocol"
)

// msgCPUNotStarted is the wire message for execution control without a
// live title.
const msgCPUNotStarted = "CPU not started"

// CPUCore exposes execution control over the host core: status
// queries, halting, single steps, and resuming.
type CPUCore struct {
	core host.Core
}

// NewCPUCore returns the execution-control module for core.
func NewCPUCore(core host.Core) *CPUCore {
	return &CPUCore{core: core}
}

// Bind registers the cpu events.
func (m *CPUCore) Bind(t *dispatch.Table) error {
	if err := t.Bind("cpu.status", m.status); err != nil {
		return err
	}
	if err := t.Bind(protocol.EventSteppingAt, m.stepping); err != nil {
		return err
	}
	if err := t.Bind("cpu.stepInto", m.stepInto); err != nil {
		return err
	}
	return t.Bind(protocol.EventResumed, m.resume)
}

type cpuStatusBody struct {
	Stepping bool   `json:"stepping"`
	PC       uint32 `json:"pc"`
	Counter  uint64 `json:"counter"`
}

// status answers even without a live title; pc reads as 0 then.
func (m *CPUCore) status(r *dispatch.Request) error {
	state := m.core.State()
	body := cpuStatusBody{
		Stepping: state == host.StateStepping,
		Counter:  m.core.SteppingCounter(),
	}
	if state != host.StateStopped {
		body.PC = m.core.PC()
	}
	return r.Respond(body)
}

func (m *CPUCore) stepping(r *dispatch.Request) error {
	if m.core.State() == host.StateStopped {
		return r.Fail(msgCPUNotStarted)
	}
	return m.core.Break()
}

func (m *CPUCore) stepInto(r *dispatch.Request) error {
	if m.core.State() == host.StateStopped {
		return r.Fail(msgCPUNotStarted)
	}
	return m.core.StepInto()
}

func (m *CPUCore) resume(r *dispatch.Request) error {
	if m.core.State() == host.StateStopped {
		return r.Fail(msgCPUNotStarted)
	}
	return m.core.Resume()
}
