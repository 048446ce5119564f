package main

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emucore/debugsock/src/host"
)

// The simulated program occupies a small window above the usual
// user-space entry point and loops forever.
const (
	simEntryPC    = 0x08804000
	simWindowSize = 0x4000
)

// simCore is a stand-in execution core. It advances the program
// counter at 60Hz while running and honors the usual halt, step, and
// resume controls.
type simCore struct {
	mu      sync.Mutex
	state   host.RunState
	pc      uint32
	counter uint64

	logger zerolog.Logger
	done   chan struct{}
}

func newSimCore(logger zerolog.Logger) *simCore {
	return &simCore{
		state:  host.StateRunning,
		pc:     simEntryPC,
		logger: logger.With().Str("component", "sim-core").Logger(),
		done:   make(chan struct{}),
	}
}

// run drives the fake program until stop is called.
func (c *simCore) run() {
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state == host.StateRunning {
				c.pc += 4
				if c.pc >= simEntryPC+simWindowSize {
					c.pc = simEntryPC
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *simCore) stop() {
	close(c.done)
}

func (c *simCore) State() host.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *simCore) SteppingCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

func (c *simCore) PC() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pc
}

func (c *simCore) Break() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == host.StateStepping {
		return nil
	}
	c.state = host.StateStepping
	c.counter++
	c.logger.Debug().Uint32("pc", c.pc).Str("state", c.state.String()).Msg("halted")
	return nil
}

func (c *simCore) StepInto() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pc += 4
	c.state = host.StateStepping
	c.counter++
	c.logger.Debug().Uint32("pc", c.pc).Str("state", c.state.String()).Msg("stepped")
	return nil
}

func (c *simCore) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = host.StateRunning
	c.logger.Debug().Uint32("pc", c.pc).Str("state", c.state.String()).Msg("resumed")
	return nil
}

// simGame reports a fixed title once booted.
type simGame struct {
	mu   sync.Mutex
	info host.GameInfo
	live bool
}

func newSimGame() *simGame {
	return &simGame{}
}

func (g *simGame) boot(info host.GameInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.info = info
	g.live = true
}

func (g *simGame) Info() (host.GameInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.info, g.live
}

var (
	_ host.Core = (*simCore)(nil)
	_ host.Game = (*simGame)(nil)
)
