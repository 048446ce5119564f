package subscriber

import (
	"github.com/emucore/debugsock/src/dispatch"
	"github.com/emucore/debugsock/src/host"
	"github.com/emucore/debugsock/src/protocol"
)

// GameMeta answers identity queries: the loaded title and the engine's
// own name and version.
type GameMeta struct {
	core    host.Core
	game    host.Game
	name    string
	version string
}

// NewGameMeta returns the identity module. name and version describe
// the embedding engine, not the title.
func NewGameMeta(core host.Core, game host.Game, name, version string) *GameMeta {
	return &GameMeta{core: core, game: game, name: name, version: version}
}

// Bind registers the game.status and version events.
func (m *GameMeta) Bind(t *dispatch.Table) error {
	if err := t.Bind("game.status", m.gameStatus); err != nil {
		return err
	}
	return t.Bind("version", m.engineVersion)
}

type gameStatusBody struct {
	// Game is null when no title is live.
	Game *protocol.GameBody `json:"game"`
	// Paused is true whenever the core is not executing freely,
	// including while stepping.
	Paused bool `json:"paused"`
}

type versionBody struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (m *GameMeta) gameStatus(r *dispatch.Request) error {
	body := gameStatusBody{Paused: m.core.State() != host.StateRunning}
	if info, live := m.game.Info(); live {
		body.Game = &protocol.GameBody{
			ID:      info.ID,
			Title:   info.Title,
			Version: info.Version,
		}
	}
	return r.Respond(body)
}

func (m *GameMeta) engineVersion(r *dispatch.Request) error {
	return r.Respond(versionBody{Name: m.name, Version: m.version})
}
