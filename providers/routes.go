package providers

import (
	"errors"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/emucore/debugsock/src/service"
)

// RegisterRoutes registers the status route via Fiber. The WebSocket
// upgrade uses FastHTTPHandler, registered at the app level since
// Fiber v3 does not expose *fasthttp.RequestCtx.
func (p *Provider) RegisterRoutes(group fiber.Router) {
	group.Get("/info", p.handleInfo)
}

func (p *Provider) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"endpoint":    p.cfg.Path,
		"subprotocol": p.cfg.Subprotocol,
		"active":      p.engine.Active(),
		"draining":    p.engine.Draining(),
	})
}

// FastHTTPHandler returns the raw fasthttp handler for debugger
// upgrades. Register it on the fasthttp server at the configured path.
// Clients must request a WebSocket upgrade and offer the debugger
// subprotocol; anything else is answered 426 with no side effects.
func (p *Provider) FastHTTPHandler() fasthttp.RequestHandler {
	upgrader := websocket.FastHTTPUpgrader{
		ReadBufferSize:  p.cfg.ReadBufferSize,
		WriteBufferSize: p.cfg.WriteBufferSize,
		Subprotocols:    []string{p.cfg.Subprotocol},
	}

	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}

		offered := string(ctx.Request.Header.Peek("Sec-WebSocket-Protocol"))
		if !offersSubprotocol(offered, p.cfg.Subprotocol) {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetBodyString(`{"error":"subprotocol_required","message":"offer the debugger subprotocol"}`)
			return
		}

		err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			tr := newWSTransport(conn, p.cfg.WriteTimeout(), p.cfg.CloseGrace())
			switch err := p.engine.ServeTransport(tr); {
			case errors.Is(err, service.ErrStopped):
				p.logger.Debug().Msg("upgrade refused, engine stopped")
			case err != nil:
				p.logger.Error().Err(err).Msg("session setup failed")
			}
		})
		if err != nil {
			p.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// offersSubprotocol reports whether the comma-separated client offer
// names the wanted subprotocol.
func offersSubprotocol(offered, want string) bool {
	for _, p := range strings.Split(offered, ",") {
		if strings.EqualFold(strings.TrimSpace(p), want) {
			return true
		}
	}
	return false
}
