// Package service assembles the debugger engine: host surfaces, the
// session coordinator, per-connection modules and broadcasters, and
// the optional Redis bridge.
package service

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emucore/debugsock/config"
	"github.com/emucore/debugsock/src/bridge"
	"github.com/emucore/debugsock/src/broadcast"
	"github.com/emucore/debugsock/src/host"
	"github.com/emucore/debugsock/src/protocol"
	"github.com/emucore/debugsock/src/session"
	"github.com/emucore/debugsock/src/subscriber"
)

// Options name the host surfaces and identity the engine serves.
type Options struct {
	// Core is the execution-control surface. Required.
	Core host.Core
	// Game is the title-metadata surface. Required.
	Game host.Game
	// Logs receives the host's log stream. Nil disables log events.
	Logs *broadcast.LogFeed
	// Name and Version identify the engine in version responses.
	Name    string
	Version string
}

// ErrStopped rejects transports that arrive after Stop.
var ErrStopped = errors.New("engine stopped")

// Engine serves debugger sessions over any transport and owns their
// shared machinery. One engine serves many concurrent connections.
type Engine struct {
	cfg    *config.Config
	opts   Options
	coord  *session.Coordinator
	logger zerolog.Logger

	mu      sync.RWMutex
	bridge  *bridge.RedisBridge
	stopped bool
}

// New creates an engine for the given host surfaces. Call Start before
// serving transports.
func New(cfg *config.Config, opts Options, logger zerolog.Logger) *Engine {
	if opts.Name == "" {
		opts.Name = "debugsock"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Engine{
		cfg:    cfg,
		opts:   opts,
		coord:  session.NewCoordinator(),
		logger: logger.With().Str("component", "debug-engine").Logger(),
	}
}

// Start brings the engine up. The Redis bridge is attempted but not
// required; without it the engine runs standalone.
func (e *Engine) Start() error {
	e.initBridge()
	e.logger.Info().Msg("debugger engine started")
	return nil
}

// initBridge tries to start the Redis bridge.
func (e *Engine) initBridge() {
	rb := bridge.NewRedisBridge(&bridge.RedisConfig{
		Addr:     e.cfg.Redis.Addr,
		Password: e.cfg.Redis.Password,
		DB:       e.cfg.Redis.DB,
		Prefix:   e.cfg.Redis.Prefix,
	}, e.logger)

	if err := rb.Start(); err != nil {
		e.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		return
	}

	e.mu.Lock()
	e.bridge = rb
	e.mu.Unlock()
	e.logger.Info().Str("redis_addr", e.cfg.Redis.Addr).Msg("redis bridge connected")
}

// Stop retires the engine: new transports are refused from here on,
// every live session is drained, then the bridge stops. Upgrades that
// land mid-shutdown get ErrStopped, never a session.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.coord.StopAndDrain()

	e.mu.Lock()
	rb := e.bridge
	e.bridge = nil
	e.mu.Unlock()

	if rb != nil {
		if err := rb.Stop(); err != nil {
			e.logger.Error().Err(err).Msg("bridge stop error")
			return err
		}
	}
	e.logger.Info().Msg("debugger engine stopped")
	return nil
}

// StopAllAndWait drains every live session and blocks until the last
// one has torn down. The engine keeps accepting new sessions after it
// returns.
func (e *Engine) StopAllAndWait() {
	e.coord.StopAndDrain()
}

// Active returns the number of live sessions.
func (e *Engine) Active() int {
	return e.coord.Active()
}

// Draining reports whether a drain is in progress.
func (e *Engine) Draining() bool {
	return e.coord.StopRequested()
}

// ServeTransport runs one debugger session over tr to completion. It
// blocks for the connection's lifetime; the transport layer calls it
// on the connection's goroutine. A setup failure closes the transport
// and returns the error; a stopped engine closes it and returns
// ErrStopped.
func (e *Engine) ServeTransport(tr protocol.Transport) error {
	e.mu.RLock()
	stopped := e.stopped
	rb := e.bridge
	e.mu.RUnlock()

	if stopped {
		if err := tr.Close(); err != nil {
			e.logger.Debug().Err(err).Msg("transport close failed")
		}
		return ErrStopped
	}

	connID := uuid.New().String()
	logger := e.logger.With().Str("conn_id", connID).Logger()

	out := protocol.Sender(tr)
	var notify *bridge.Notify
	if rb != nil && rb.Available() {
		out = &mirrorSender{transport: tr, bridge: rb, connID: connID, logger: logger}
		notify = bridge.NewNotify(rb)
	}

	modules := []subscriber.Module{
		subscriber.NewCPUCore(e.opts.Core),
		subscriber.NewGameMeta(e.opts.Core, e.opts.Game, e.opts.Name, e.opts.Version),
	}

	var casters []broadcast.Broadcaster
	var logCaster *broadcast.Log
	if e.opts.Logs != nil {
		logCaster = broadcast.NewLog(e.opts.Logs)
		casters = append(casters, logCaster)
	}
	casters = append(casters,
		broadcast.NewGame(e.opts.Game),
		broadcast.NewStepping(e.opts.Core),
	)
	if notify != nil {
		casters = append(casters, notify)
	}

	sess, err := session.New(session.Config{
		Transport:    tr,
		Out:          out,
		Modules:      modules,
		Broadcasters: casters,
		Coordinator:  e.coord,
		PollInterval: e.cfg.PollInterval(),
		Logger:       logger,
	})
	if err != nil {
		for _, b := range casters {
			if c, ok := b.(io.Closer); ok {
				_ = c.Close()
			}
		}
		if cerr := tr.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("transport close failed")
		}
		return fmt.Errorf("session setup: %w", err)
	}

	logger.Info().Msg("debugger connected")
	sess.Run()
	if logCaster != nil && logCaster.Dropped() > 0 {
		logger.Warn().Uint64("dropped", logCaster.Dropped()).Msg("log tail overflowed, lines dropped")
	}
	if notify != nil && notify.Dropped() > 0 {
		logger.Warn().Uint64("dropped", notify.Dropped()).Msg("notify tail overflowed, events dropped")
	}
	logger.Info().Msg("debugger disconnected")
	return nil
}

// mirrorSender tees delivered messages onto the bridge. Mirror
// failures never break the session; observers are best effort.
type mirrorSender struct {
	transport protocol.Sender
	bridge    *bridge.RedisBridge
	connID    string
	logger    zerolog.Logger
}

func (m *mirrorSender) Send(data []byte) error {
	if err := m.transport.Send(data); err != nil {
		return err
	}
	if err := m.bridge.Publish(m.connID, data); err != nil {
		m.logger.Debug().Err(err).Msg("mirror publish failed")
	}
	return nil
}
