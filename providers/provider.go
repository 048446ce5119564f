// Package providers exposes the debugger engine over HTTP: the
// WebSocket upgrade endpoint and a small status route.
package providers

import (
	"github.com/rs/zerolog"

	"github.com/emucore/debugsock/config"
	"github.com/emucore/debugsock/src/service"
)

// Provider wires the engine into the fasthttp server and fiber router.
type Provider struct {
	engine *service.Engine
	cfg    *config.Config
	logger zerolog.Logger
}

// New creates a provider serving engine under cfg.
func New(engine *service.Engine, cfg *config.Config, logger zerolog.Logger) *Provider {
	return &Provider{
		engine: engine,
		cfg:    cfg,
		logger: logger.With().Str("component", "debug-provider").Logger(),
	}
}
