package gameserver

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/coder/quartz"
	"github.com/decred/slog"

	"github.com/holdempoker/tableserver/internal/bet"
	"github.com/holdempoker/tableserver/internal/cards"
	"github.com/holdempoker/tableserver/internal/holdem"
	"github.com/holdempoker/tableserver/internal/room"
	"github.com/holdempoker/tableserver/internal/store"
	"github.com/holdempoker/tableserver/internal/wire"
)

// Dealer drives one hand at a time for a table, wiring internal/holdem's
// state machine to the player channel (human bet requests), the room's
// broadcast (shared cards, bet results, showdown), and internal/store
// (spec.md §4.7's transactional hand-write sequence). RoomRegistry.EnsureRoom
// builds one Dealer per room; PlayHand closes over that room's table ID and
// broadcast function.
type Dealer struct {
	Store            store.Store
	Clock            quartz.Clock
	SmallBlind       int64
	BigBlind         int64
	BetTimeout       time.Duration
	TimeoutTolerance time.Duration
	WaitAfterStreet  time.Duration
	// InitMoney is the auto-topup target (spec.md §4.3): any seat entering
	// a hand short of BigBlind is loaned up to this amount before dealing.
	InitMoney int64
	Log       slog.Logger
}

func (d *Dealer) logf(format string, args ...any) {
	if d.Log != nil {
		d.Log.Warnf(format, args...)
	}
}

// PlayHand builds a room.Hooks.PlayHand callback for the given table,
// broadcasting through broadcast (the room's own Hooks.Broadcast, captured
// by the caller at room-construction time so both hooks share one room).
func (d *Dealer) PlayHand(tableID string, broadcast func(room.Event)) func(ctx context.Context, seats []*holdem.Seat, dealerIdx int) (*holdem.Result, error) {
	return func(ctx context.Context, seats []*holdem.Seat, dealerIdx int) (*holdem.Result, error) {
		return d.playOnce(ctx, tableID, seats, dealerIdx, broadcast)
	}
}

func (d *Dealer) playOnce(ctx context.Context, tableID string, seats []*holdem.Seat, dealerIdx int, broadcast func(room.Event)) (*holdem.Result, error) {
	d.topUpShortStacks(ctx, seats)

	startingStacks := make(map[string]int64, len(seats))
	for _, s := range seats {
		if s.Server != nil {
			startingStacks[s.Server.ID] = s.Server.Money
		}
	}

	holdem.AssignPositions(seats, dealerIdx)

	var handID int64
	if d.Store != nil {
		id, err := d.Store.CreateHand(ctx, tableID, d.SmallBlind, d.BigBlind)
		if err != nil {
			d.logf("gameserver: create hand for table %s: %v", tableID, err)
		} else {
			handID = id
			for i, s := range seats {
				if s.Server == nil {
					continue
				}
				if err := d.Store.AddHandPlayer(ctx, handID, store.HandPlayer{
					PlayerID:      s.Server.ID,
					SeatNo:        i,
					StartingStack: s.Server.Money,
					PositionName:  s.Position,
				}); err != nil {
					d.logf("gameserver: add hand player %s: %v", s.Server.ID, err)
				}
			}
		}
	}

	cfg := holdem.Config{
		SmallBlind:       d.SmallBlind,
		BigBlind:         d.BigBlind,
		Clock:            d.Clock,
		BetTimeout:       d.BetTimeout,
		TimeoutTolerance: d.TimeoutTolerance,
		WaitAfterStreet:  d.WaitAfterStreet,
		RequestAction:    d.channelRequestAction(seats),
		OnHoleCardsDealt: func(playerID string, hole []cards.Card) {
			if d.Store != nil && handID != 0 {
				if err := d.Store.RecordHoleCards(ctx, handID, playerID, cardCodes(hole)); err != nil {
					d.logf("gameserver: record hole cards for %s: %v", playerID, err)
				}
			}
		},
		OnCommunityDealt: func(phase holdem.Phase, community []cards.Card) {
			broadcast(room.Event{Type: "shared-cards", Payload: wire.SharedCards{
				Street: streetIndex(phase),
				Cards:  community,
			}})
		},
		OnAction: func(playerID string, result bet.Result, amount, potBefore int64, actionNum int, street holdem.Phase, forcedActionType string) {
			actionType := forcedActionType
			if actionType == "" {
				actionType = result.String()
			}
			broadcast(room.Event{Type: "bet", Payload: wire.BetBroadcast{
				PlayerID:   playerID,
				ActionType: actionType,
				Amount:     amount,
			}})
			if d.Store != nil && handID != 0 {
				if err := d.Store.AddHandAction(ctx, handID, store.Action{
					PlayerID:   playerID,
					Street:     streetIndex(street),
					ActionNum:  actionNum,
					ActionType: actionType,
					Amount:     amount,
					PotBefore:  potBefore,
				}); err != nil {
					d.logf("gameserver: add hand action #%d: %v", actionNum, err)
				}
			}
		},
	}

	deck := cards.New(rand.New(rand.NewSource(time.Now().UnixNano())))
	hand := holdem.New(cfg, seats, dealerIdx, deck)
	result, err := hand.Run(ctx)
	if err != nil {
		return nil, err
	}

	broadcast(room.Event{Type: "winner-designation", Payload: winnerDesignation(result)})
	broadcast(room.Event{Type: "game-over", Payload: wire.GameOver{TotalPot: totalPot(result)}})

	if d.Store != nil && handID != 0 {
		d.finishHand(ctx, handID, tableID, seats, result, startingStacks)
	}

	return result, nil
}

// topUpShortStacks tops up to InitMoney any seat entering the hand with
// money < big blind, recording the difference as an auto_topup chip transaction
// (spec.md §4.3). Runs before positions are assigned and the hand is
// created, so the topped-up stack is what gets persisted as the starting
// stack and dealt into.
func (d *Dealer) topUpShortStacks(ctx context.Context, seats []*holdem.Seat) {
	if d.InitMoney <= 0 {
		return
	}
	for _, s := range seats {
		if s.Server == nil || s.Server.Money >= d.BigBlind {
			continue
		}
		delta := d.InitMoney - s.Server.Money
		if delta <= 0 {
			continue
		}
		if err := s.Server.AddMoney(delta); err != nil {
			d.logf("gameserver: auto-topup %s: %v", s.Server.ID, err)
			continue
		}
		if d.Store != nil {
			if err := d.Store.RecordChipTransaction(ctx, s.Server.ID, store.TxAutoTopup, delta, nil, "auto topup"); err != nil {
				d.logf("gameserver: persist auto-topup for %s: %v", s.Server.ID, err)
			}
		}
	}
}

func (d *Dealer) finishHand(ctx context.Context, handID int64, tableID string, seats []*holdem.Seat, result *holdem.Result, startingStacks map[string]int64) {
	winners := make(map[string]bool, len(result.Awards))
	for _, a := range result.Awards {
		winners[a.PlayerID] = true
	}

	results := make([]store.PlayerResult, 0, len(seats))
	statsByPlayer := make(map[string]store.HandStats, len(seats))
	for _, s := range seats {
		if s.Server == nil {
			continue
		}
		id := s.Server.ID
		endingStack := s.Server.Money
		results = append(results, store.PlayerResult{
			PlayerID:    id,
			EndingStack: endingStack,
			IsWinner:    winners[id],
			HoleCards:   cardCodes(s.Server.Hole),
		})

		hs := store.HandStats{BigBlind: d.BigBlind, NetChips: endingStack - startingStacks[id]}
		if st, ok := result.Stats[id]; ok {
			hs.VPIP = st.VPIP
			hs.PFR = st.PFR
			hs.ThreeBet = st.ThreeBet
			hs.AggBets = st.AggBets
			hs.AggCalls = st.AggCalls
			hs.WentToShowdown = st.WentToShowdown
			hs.WonShowdown = st.WonShowdown
		}
		statsByPlayer[id] = hs

		if err := d.Store.UpdatePlayerWallet(ctx, id, endingStack); err != nil {
			d.logf("gameserver: update wallet for %s: %v", id, err)
		}
	}

	if err := d.Store.FinishHand(ctx, handID, tableID, cardCodes(result.Board), totalPot(result), results, statsByPlayer, time.Now()); err != nil {
		d.logf("gameserver: finish hand %d: %v", handID, err)
	}
}

// channelRequestAction builds a bet.ActionRequest that asks a human seat's
// channel for its decision, re-reading until the deadline so an
// intervening chat/interaction message isn't mistaken for the bet answer.
// A closed channel or an expired deadline returns an error, which
// bet.Rounder's classify treats as a fold (spec.md §7: disconnect mid-turn
// forces a fold).
func (d *Dealer) channelRequestAction(seats []*holdem.Seat) bet.ActionRequest {
	byID := make(map[string]*holdem.Seat, len(seats))
	for _, s := range seats {
		if s.Server != nil {
			byID[s.Server.ID] = s
		}
	}

	return func(ctx context.Context, playerID string, toCall, minRaise int64, deadline time.Time) (int64, error) {
		seat := byID[playerID]
		if seat == nil || seat.Server == nil {
			return -1, context.DeadlineExceeded
		}

		req, err := wire.Encode(wire.BetRequest{
			PlayerID: playerID,
			MinBet:   minRaise,
			MaxBet:   seat.Server.Money,
			Deadline: deadline.Unix(),
		})
		if err != nil {
			return -1, err
		}
		if !seat.Server.Send(ctx, req) {
			return -1, context.DeadlineExceeded
		}

		for {
			raw, err := seat.Server.Recv(ctx, deadline)
			if err != nil {
				seat.Server.Disconnect()
				return -1, err
			}

			var env wire.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			if env.MessageType != wire.TypeClientBet {
				continue // chat/interaction arriving while this seat is on the clock
			}
			var betMsg wire.BetMessage
			if err := wire.Decode(env, &betMsg); err != nil {
				continue
			}
			return betMsg.Amount, nil
		}
	}
}

func cardCodes(cs []cards.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Code()
	}
	return out
}

func streetIndex(phase holdem.Phase) int {
	switch phase {
	case holdem.PhaseFlopDeal, holdem.PhaseFlopBet:
		return 1
	case holdem.PhaseTurnDeal, holdem.PhaseTurnBet:
		return 2
	case holdem.PhaseRiverDeal, holdem.PhaseRiverBet:
		return 3
	default:
		return 0
	}
}

func totalPot(result *holdem.Result) int64 {
	var total int64
	for _, a := range result.Awards {
		total += a.Amount
	}
	return total
}

func winnerDesignation(result *holdem.Result) wire.WinnerDesignation {
	winners := make([]wire.Winner, 0, len(result.Awards))
	for _, a := range result.Awards {
		winners = append(winners, wire.Winner{PlayerID: a.PlayerID, Amount: a.Amount})
	}
	return wire.WinnerDesignation{Winners: winners}
}
