// debugsockd runs the debugger engine over a simulated host, so
// protocol clients can be exercised without embedding the engine in a
// real emulator.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/emucore/debugsock/config"
	"github.com/emucore/debugsock/providers"
	"github.com/emucore/debugsock/src/broadcast"
	"github.com/emucore/debugsock/src/host"
	"github.com/emucore/debugsock/src/service"
)

const version = "0.1.0"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "debugsock.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debugsockd: %v\n", err)
		os.Exit(1)
	}

	// Host logs tee into the feed so connected debuggers receive them
	// as log events.
	feed := broadcast.NewLogFeed(cfg.LogTailDepth)
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(zerolog.MultiLevelWriter(console, feed)).
		With().Timestamp().Logger()

	core := newSimCore(logger)
	go core.run()

	game := newSimGame()
	game.boot(host.GameInfo{
		ID:      "DEMO-00001",
		Title:   "Simulated Title",
		Version: "1.00",
	})
	logger.Info().Str("component", "sim-core").Msg("game booted")

	engine := service.New(cfg, service.Options{
		Core:    core,
		Game:    game,
		Logs:    feed,
		Name:    "debugsockd",
		Version: version,
	}, logger)
	if err := engine.Start(); err != nil {
		logger.Fatal().Err(err).Msg("engine start failed")
	}

	provider := providers.New(engine, cfg, logger)
	app := fiber.New()
	provider.RegisterRoutes(app.Group(cfg.Path))

	// Fiber v3 does not expose *fasthttp.RequestCtx, so the upgrade
	// handler mounts on the raw server and everything else forwards
	// to the fiber app.
	fiberHandler := app.Handler()
	wsHandler := provider.FastHTTPHandler()
	server := &fasthttp.Server{
		Name: "debugsockd/" + version,
		Handler: func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Path()) == cfg.Path {
				wsHandler(ctx)
				return
			}
			fiberHandler(ctx)
		},
	}

	go func() {
		logger.Info().
			Str("listen", cfg.Listen).
			Str("path", cfg.Path).
			Msg("debugger listening")
		if err := server.ListenAndServe(cfg.Listen); err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	logger.Info().Msg("shutting down")
	if err := engine.Stop(); err != nil {
		logger.Error().Err(err).Msg("engine stop failed")
	}
	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	core.stop()
}
