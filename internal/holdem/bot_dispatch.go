package holdem

import (
	"context"
	"fmt"
	"time"

	"github.com/holdempoker/tableserver/internal/bet"
	"github.com/holdempoker/tableserver/internal/bot"
)

// streetFor maps a betting-round phase onto the bot subsystem's narrower
// Street enum; a bot is only ever asked to act during one of these four.
func streetFor(phase Phase) bot.Street {
	switch phase {
	case PhaseFlopBet:
		return bot.StreetFlop
	case PhaseTurnBet:
		return bot.StreetTurn
	case PhaseRiverBet:
		return bot.StreetRiver
	default:
		return bot.StreetPreflop
	}
}

// requestAction builds the bet.ActionRequest a round's Rounder calls per
// seat: a bot seat (Server.Decide != nil) is asked directly with a freshly
// built DecisionContext, bypassing the channel entirely per player.go's
// Decide doc; a human seat falls through to the configured channel
// round-trip (h.cfg.RequestAction).
func (h *Hand) requestAction(byID map[string]*Seat) bet.ActionRequest {
	return func(ctx context.Context, playerID string, toCall, minRaise int64, deadline time.Time) (int64, error) {
		seat := byID[playerID]
		if seat == nil || seat.Server == nil {
			return -1, fmt.Errorf("holdem: unknown seat %q in betting round", playerID)
		}
		if seat.Server.Decide != nil {
			dc := h.decisionContext(seat, toCall, minRaise)
			return seat.Server.Decide(ctx, dc)
		}
		if h.cfg.RequestAction == nil {
			return -1, fmt.Errorf("holdem: no channel action source configured for player %q", playerID)
		}
		return h.cfg.RequestAction(ctx, playerID, toCall, minRaise, deadline)
	}
}

// decisionContext snapshots the hand's current public state plus seat's own
// hole cards for a bot's decision (internal/bot.DecisionContext).
func (h *Hand) decisionContext(seat *Seat, toCall, minRaise int64) bot.DecisionContext {
	players := make([]bot.PlayerView, 0, len(h.seats))
	for _, s := range h.seats {
		if s.Server == nil {
			continue
		}
		players = append(players, bot.PlayerView{
			PlayerID:   s.Server.ID,
			Money:      h.stacks[s.Server.ID],
			CurrentBet: h.pot.CurrentBets[s.Server.ID],
			Folded:     h.folded[s.Server.ID],
			AllIn:      h.allIn[s.Server.ID],
		})
	}

	seatIdx := 0
	for i, s := range h.seats {
		if s == seat {
			seatIdx = i
			break
		}
	}

	return bot.DecisionContext{
		Street:     streetFor(h.phase),
		PlayerID:   seat.Server.ID,
		PlayerName: seat.Server.Name,
		Seat:       seatIdx,
		Hand:       seat.Server.Hole,
		Board:      h.community,
		Players:    players,
		PotTotal:   h.pot.Total(),
		MinBet:     toCall,
		MaxBet:     h.stacks[seat.Server.ID],
		ToCall:     toCall,
		History:    h.history,
	}
}
