package gameserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/holdempoker/tableserver/internal/player"
	"github.com/holdempoker/tableserver/internal/room"
	"github.com/holdempoker/tableserver/internal/wire"
)

// PingTimeout is how long a player has to answer a ping with a pong,
// mirroring player_server.py's ping(): send, then recv_message with a 5s
// deadline.
const PingTimeout = 5 * time.Second

// DefaultPing sends a ping and waits for a pong, applying any ready/
// start-final-10-hands flags it carries. It satisfies room.PingFunc.
func DefaultPing(ctx context.Context, p *player.Server) bool {
	env, err := wire.Encode(wire.Ping{})
	if err != nil {
		return false
	}
	if !p.Send(ctx, env) {
		return false
	}

	raw, err := p.Recv(ctx, time.Now().Add(PingTimeout))
	if err != nil {
		p.Disconnect()
		return false
	}

	var inbound wire.Envelope
	if err := json.Unmarshal(raw, &inbound); err != nil {
		p.Disconnect()
		return false
	}
	var pong wire.PongMessage
	if err := wire.Decode(inbound, &pong); err != nil {
		p.Disconnect()
		return false
	}

	if pong.Ready != nil {
		p.Ready = *pong.Ready
	}
	if pong.StartFinal10Hands != nil {
		p.WantsFinal10Hands = *pong.StartFinal10Hands
	}
	return true
}

var _ room.PingFunc = DefaultPing
