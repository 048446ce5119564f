package broadcast

import (
	"encoding/json"

	"github.com/emucore/debugsock/src/host"
	"github.com/emucore/debugsock/src/protocol"
)

// Game watches the host for title transitions and emits game.start and
// game.quit events. Each connection carries its own cursor, so a
// client attaching mid-game sees the next transition, not the current
// state; the game.status request covers the snapshot.
type Game struct {
	game host.Game
	live bool
}

// NewGame returns a broadcaster whose cursor starts at the host's
// current state, suppressing a spurious start event on attach.
func NewGame(game host.Game) *Game {
	_, live := game.Info()
	return &Game{game: game, live: live}
}

// Broadcast emits one event when the live title changed since the
// previous pass.
func (g *Game) Broadcast(out protocol.Sender) error {
	info, live := g.game.Info()
	if live == g.live {
		return nil
	}
	g.live = live

	var (
		data []byte
		err  error
	)
	if live {
		data, err = json.Marshal(protocol.GameStartEvent{
			Event: protocol.EventGameStart,
			Game: protocol.GameBody{
				ID:      info.ID,
				Title:   info.Title,
				Version: info.Version,
			},
		})
	} else {
		data, err = json.Marshal(protocol.GameQuitEvent{Event: protocol.EventGameQuit})
	}
	if err != nil {
		return err
	}
	return out.Send(data)
}
