// Package holdem drives one hand of Texas Hold'em end to end: blinds,
// hole cards, the four betting rounds, showdown, and settlement, wiring
// internal/bet's Rounder and internal/handeval's evaluator around a single
// hand's Rob Pike state machine.
package holdem

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/holdempoker/tableserver/internal/bet"
	"github.com/holdempoker/tableserver/internal/bot"
	"github.com/holdempoker/tableserver/internal/cards"
	"github.com/holdempoker/tableserver/internal/handeval"
	"github.com/holdempoker/tableserver/internal/player"
	"github.com/holdempoker/tableserver/internal/statemachine"
)

// Phase names a point in the hand state chain.
type Phase string

const (
	PhaseInit       Phase = "INIT"
	PhaseBlinds     Phase = "BLINDS"
	PhaseDealHole   Phase = "DEAL_HOLE"
	PhasePreflopBet Phase = "PREFLOP_BET"
	PhaseFlopDeal   Phase = "FLOP_DEAL"
	PhaseFlopBet    Phase = "FLOP_BET"
	PhaseTurnDeal   Phase = "TURN_DEAL"
	PhaseTurnBet    Phase = "TURN_BET"
	PhaseRiverDeal  Phase = "RIVER_DEAL"
	PhaseRiverBet   Phase = "RIVER_BET"
	PhaseShowdown   Phase = "SHOWDOWN"
	PhaseEarlyEnd   Phase = "EARLY_END"
	PhaseSettle     Phase = "SETTLE"
	PhaseDone       Phase = "DONE"
)

// Fn is the hand's own state function, generic over Hand.
type Fn = statemachine.Fn[Hand]

// Seat pairs a table occupant with its position name for this hand
// (SB/BB/UTG/MP/HJ/CO/BTN), derived from seat index relative to the
// dealer.
type Seat struct {
	Server   *player.Server
	Position string
}

// Config bundles the knobs a hand needs beyond its seats and deck.
type Config struct {
	SmallBlind         int64
	BigBlind           int64
	Clock              quartz.Clock
	BetTimeout         time.Duration
	TimeoutTolerance   time.Duration
	WaitAfterStreet    time.Duration
	RequestAction      bet.ActionRequest
	// OnAction fires once per resolved action, including blinds and forced
	// folds. forcedActionType overrides the action_type a persistence layer
	// would otherwise derive from result (spec.md §4.7's classification
	// table is itself overridable by a forced_action_type); it is only
	// non-empty for blind postings ("small_blind"/"big_blind").
	OnAction func(playerID string, result bet.Result, amount, potBefore int64, actionNum int, street Phase, forcedActionType string)
	OnCommunityDealt func(phase Phase, community []cards.Card)
	// OnHoleCardsDealt fires once per seated player right after hole cards
	// are dealt (update_hand_player_result's hole_cards write, spec.md
	// §4.7 step 3).
	OnHoleCardsDealt func(playerID string, hole []cards.Card)
}

// Result is everything the caller (internal/room) needs to persist and
// broadcast once a hand finishes.
type Result struct {
	Board  []cards.Card
	Awards []bet.PotAward
	Stats  map[string]*Stats
}

// Hand drives a single hand from blinds through settlement.
type Hand struct {
	cfg Config

	seats     []*Seat
	dealerIdx int

	deck      *cards.Deck
	community []cards.Card

	pot       *bet.Manager
	actionNum int

	folded map[string]bool
	allIn  map[string]bool
	stacks map[string]int64

	stats   map[string]*Stats
	history []bot.ActionRecord

	phase   Phase
	result  *Result
	machine *statemachine.Machine[Hand]

	ctx context.Context
}

// New builds a hand given the table's seats in clockwise order and the
// dealer's index within that slice. Seats with Server == nil are empty and
// skipped.
func New(cfg Config, seats []*Seat, dealerIdx int, deck *cards.Deck) *Hand {
	h := &Hand{
		cfg:       cfg,
		seats:     seats,
		dealerIdx: dealerIdx,
		deck:      deck,
		pot:       bet.NewManager(),
		folded:    make(map[string]bool),
		allIn:     make(map[string]bool),
		stacks:    make(map[string]int64),
		stats:     make(map[string]*Stats),
	}
	for _, s := range h.seats {
		if s.Server == nil {
			continue
		}
		h.stacks[s.Server.ID] = s.Server.Money
		h.stats[s.Server.ID] = &Stats{}
	}
	assignPositions(h.seats, h.dealerIdx)
	h.machine = statemachine.New(h, stateInit)
	return h
}

// Run dispatches the state machine to completion and returns the
// settlement result.
func (h *Hand) Run(ctx context.Context) (*Result, error) {
	h.ctx = ctx
	for !h.machine.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.machine.Dispatch(nil)
	}
	if h.result == nil {
		return nil, fmt.Errorf("holdem: hand finished without a result")
	}
	return h.result, nil
}

func (h *Hand) liveSeats() []*Seat {
	var out []*Seat
	for _, s := range h.seats {
		if s.Server == nil || h.folded[s.Server.ID] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (h *Hand) nonFoldedCount() int {
	n := 0
	for _, s := range h.seats {
		if s.Server != nil && !h.folded[s.Server.ID] {
			n++
		}
	}
	return n
}

// AssignPositions labels every occupied seat SB/BB/UTG/MP/HJ/CO/BTN relative
// to the dealer, per spec.md §4.7 (heads-up uses SB/BB only). New calls this
// itself; it's exported so a caller that persists add_hand_player rows
// before the hand starts (internal/gameserver's Dealer) can read Position
// off each Seat first.
func AssignPositions(seats []*Seat, dealerIdx int) { assignPositions(seats, dealerIdx) }

func assignPositions(seats []*Seat, dealerIdx int) {
	var occupied []*Seat
	for _, s := range seats {
		if s.Server != nil {
			occupied = append(occupied, s)
		}
	}
	n := len(occupied)
	if n == 0 {
		return
	}

	dealerOccupiedIdx := -1
	for i, s := range occupied {
		if s.Server == seats[dealerIdx].Server {
			dealerOccupiedIdx = i
		}
	}
	if dealerOccupiedIdx == -1 {
		dealerOccupiedIdx = 0
	}

	names := positionNames(n)
	for i, s := range occupied {
		rel := (i - dealerOccupiedIdx + n) % n
		s.Position = names[rel]
	}
}

func positionNames(n int) []string {
	if n == 2 {
		return []string{"SB", "BB"}
	}
	full := []string{"BTN", "SB", "BB", "UTG", "MP", "HJ", "CO"}
	if n <= len(full) {
		out := make([]string, n)
		copy(out, full[:n])
		return out
	}
	out := make([]string, n)
	for i := range out {
		switch {
		case i < len(full)-1:
			out[i] = full[i]
		default:
			out[i] = fmt.Sprintf("MP%d", i-len(full)+2)
		}
	}
	return out
}
