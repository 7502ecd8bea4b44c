package gameserver

import (
	"context"
	"fmt"

	"github.com/holdempoker/tableserver/internal/bot"
	"github.com/holdempoker/tableserver/internal/broker"
	"github.com/holdempoker/tableserver/internal/player"
)

// Bots implements gameserver.BotFactory over internal/bot's engine registry,
// the adapter layer between player.Decide's untyped decisionContext and
// bot.Engine's concrete bot.DecisionContext (neither internal/player nor
// internal/bot may import the other, so this package — which already
// depends on both — owns the type assertion).
type Bots struct {
	registry *bot.Registry
}

// NewBots wires a Bots factory around a registry built from the configured
// remote decision service.
func NewBots(remote bot.RemoteConfig) *Bots {
	return &Bots{registry: bot.NewRegistry(remote)}
}

// NewBot builds a bot seat: a Player backed by internal/broker's
// swallow-everything channel, with Decide resolving through the registry's
// engine for the requested difficulty.
func (b *Bots) NewBot(id, name string, money int64, difficulty string) (*player.Server, error) {
	pl, err := player.New(id, name, money, nil)
	if err != nil {
		return nil, fmt.Errorf("gameserver: new bot %q: %w", id, err)
	}

	engine := b.registry.Engine(difficulty)
	decide := func(ctx context.Context, decisionContext any) (int64, error) {
		dc, ok := decisionContext.(bot.DecisionContext)
		if !ok {
			return -1, fmt.Errorf("gameserver: bot %q got an unexpected decision context type %T", id, decisionContext)
		}
		return engine.Decide(ctx, dc)
	}

	return player.NewServer(pl, broker.NewBotChannel(), decide), nil
}
