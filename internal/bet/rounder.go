package bet

import (
	"context"
	"time"

	"github.com/coder/quartz"
)

// Result classifies one player's response to a bet request.
type Result int

const (
	ResultFold Result = iota
	ResultCheck
	ResultCall
	ResultRaise
	ResultAllIn
	// ResultAllInRaise is an all-in that exceeds the current call (an all-in
	// raise): it reopens action like ResultRaise but is still capped to the
	// seat's remaining stack. Kept distinct from ResultAllIn (an all-in that
	// only covers, or falls short of, the call) so stats.go can route it
	// into AGG_BETS rather than AGG_CALLS (spec.md §4.7).
	ResultAllInRaise
)

func (r Result) String() string {
	switch r {
	case ResultFold:
		return "fold"
	case ResultCheck:
		return "check"
	case ResultCall:
		return "call"
	case ResultRaise:
		return "raise"
	case ResultAllIn, ResultAllInRaise:
		return "all-in"
	default:
		return "unknown"
	}
}

// Seat is the minimal view of a table occupant the rounder needs.
type Seat struct {
	PlayerID string
	Stack    int64
	Folded   bool
	AllIn    bool
}

// ActionRequest asks playerID to act given the current bet to call and the
// minimum legal raise-to amount; it must return within deadline or the
// rounder treats it as a timeout (a request error of any kind is treated as
// a missed action and forces a fold). internal/holdem's Hand.requestAction
// supplies it: bot seats get a Decide call, human seats fall through to the
// channel bet-request/bet round-trip internal/gameserver's Dealer configures.
type ActionRequest func(ctx context.Context, playerID string, toCall, minRaise int64, deadline time.Time) (amount int64, err error)

// ActionRecorded is invoked after every action (including forced folds) for
// persistence/broadcast.
type ActionRecorded func(playerID string, result Result, amount, potBefore int64, actionNum int)

// Rounder drives one betting round (pre-flop, flop, turn, or river) to
// completion: iterating seats in order, collecting a decision per seat
// within the configured deadline, reopening action after a raise, and
// forced-folding on timeout or disconnect.
type Rounder struct {
	Clock         quartz.Clock
	BetTimeout    time.Duration
	TimeoutBuffer time.Duration
	RequestAction ActionRequest
	OnAction      ActionRecorded
	BigBlind      int64
}

// NewRounder builds a Rounder with the given clock and per-action timeout
// (the grace period added to BET_TIMEOUT before a missed action is forced
// to fold is TimeoutBuffer, spec.md's TIMEOUT_TOLERANCE).
func NewRounder(clock quartz.Clock, betTimeout, timeoutBuffer time.Duration, bigBlind int64, request ActionRequest, onAction ActionRecorded) *Rounder {
	return &Rounder{
		Clock:         clock,
		BetTimeout:    betTimeout,
		TimeoutBuffer: timeoutBuffer,
		RequestAction: request,
		OnAction:      onAction,
		BigBlind:      bigBlind,
	}
}

// Run drives a betting round to completion. order lists every seat still
// live at the start of the round, in action order (first to speak first);
// pot already holds any blinds posted this round. actionNum is the running
// per-hand action counter; Run returns it updated so the caller can thread
// it into the next round.
func (r *Rounder) Run(ctx context.Context, order []*Seat, pot *Manager, actionNum int) (nextActionNum int, err error) {
	live := make([]*Seat, 0, len(order))
	for _, s := range order {
		if !s.Folded && !s.AllIn {
			live = append(live, s)
		}
	}
	if len(live) < 2 {
		return actionNum, nil
	}

	currentBet := int64(0)
	for _, s := range live {
		if b := pot.CurrentBets[s.PlayerID]; b > currentBet {
			currentBet = b
		}
	}

	minRaiseSize := r.BigBlind
	needsToAct := make(map[string]bool, len(live))
	for _, s := range live {
		needsToAct[s.PlayerID] = true
	}

	for i := 0; len(needsToAct) > 0; i = (i + 1) % len(order) {
		seat := order[i]
		if seat.Folded || seat.AllIn || !needsToAct[seat.PlayerID] {
			continue
		}

		toCall := currentBet - pot.CurrentBets[seat.PlayerID]
		if toCall < 0 {
			toCall = 0
		}
		minRaise := currentBet + minRaiseSize

		deadline := r.Clock.Now().Add(r.BetTimeout + r.TimeoutBuffer)
		potBefore := pot.Total()

		requested, reqErr := r.RequestAction(ctx, seat.PlayerID, toCall, minRaise, deadline)
		result, owed := r.classify(seat, toCall, minRaise, requested, reqErr)

		switch result {
		case ResultFold:
			seat.Folded = true
		case ResultCheck:
		case ResultCall, ResultAllIn:
			pot.AddBet(seat.PlayerID, owed)
			seat.Stack -= owed
			if seat.Stack == 0 {
				seat.AllIn = true
			}
			if pot.CurrentBets[seat.PlayerID] > currentBet {
				currentBet = pot.CurrentBets[seat.PlayerID]
			}
		case ResultRaise, ResultAllInRaise:
			raiseSize := (pot.CurrentBets[seat.PlayerID] + owed) - currentBet
			pot.AddBet(seat.PlayerID, owed)
			seat.Stack -= owed
			currentBet = pot.CurrentBets[seat.PlayerID]
			if seat.Stack == 0 {
				seat.AllIn = true
			}
			if raiseSize > minRaiseSize {
				minRaiseSize = raiseSize
			}
			for _, s := range live {
				if !s.Folded && !s.AllIn && s.PlayerID != seat.PlayerID {
					needsToAct[s.PlayerID] = true
				}
			}
		}

		delete(needsToAct, seat.PlayerID)
		actionNum++
		if r.OnAction != nil {
			r.OnAction(seat.PlayerID, result, owed, potBefore, actionNum)
		}

		notFolded := 0
		for _, s := range live {
			if !s.Folded {
				notFolded++
			}
		}
		if notFolded < 2 {
			break
		}
	}

	return actionNum, nil
}

// classify turns a raw requested amount (or a request error/timeout) into a
// Result and the chip amount actually owed, clamping an over-call to the
// player's remaining stack (an all-in for less than the full call) and a
// below-minimum raise up to minRaise (spec.md §4.2: a raise can't be sized
// smaller than the table's current minimum raise increment).
func (r *Rounder) classify(seat *Seat, toCall, minRaise, amount int64, reqErr error) (Result, int64) {
	if reqErr != nil {
		return ResultFold, 0
	}
	if amount < 0 {
		return ResultFold, 0
	}
	if amount >= seat.Stack && seat.Stack > 0 {
		if seat.Stack > toCall {
			return ResultAllInRaise, seat.Stack
		}
		return ResultAllIn, seat.Stack
	}
	if amount == 0 {
		if toCall == 0 {
			return ResultCheck, 0
		}
		return ResultFold, 0
	}
	if amount < toCall {
		return ResultFold, 0
	}
	if amount == toCall {
		if amount == 0 {
			return ResultCheck, 0
		}
		return ResultCall, amount
	}
	if amount < minRaise {
		amount = minRaise
	}
	if amount >= seat.Stack {
		return ResultAllInRaise, seat.Stack
	}
	return ResultRaise, amount
}
