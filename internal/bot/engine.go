// Package bot implements the bot decision subsystem (spec.md §4.6): a
// BotDecisionContext snapshot handed to a pluggable engine, a tabular
// "easy" engine that needs no outside service, and a remote engine that
// defers medium/hard difficulty to an HTTP decision service, falling back
// to the tabular engine on any failure.
package bot

import (
	"context"

	"github.com/holdempoker/tableserver/internal/cards"
)

// Street names the four betting rounds a decision context can be asked
// about; holdem.Phase carries more states (dealing, blinds, settlement)
// that a bot is never asked to act during.
type Street int

const (
	StreetPreflop Street = iota
	StreetFlop
	StreetTurn
	StreetRiver
)

// PlayerView is the public slice of table state a decision engine can see
// about one seat (its own hole cards are carried separately in Hand).
type PlayerView struct {
	PlayerID   string
	Money      int64
	CurrentBet int64
	Folded     bool
	AllIn      bool
}

// ActionRecord is one prior action this hand, oldest first.
type ActionRecord struct {
	PlayerID   string
	ActionType string
	Amount     int64
	Street     Street
}

// DecisionContext is everything a bot needs to act once: the public table
// state plus its own hole cards and the legal bet range, mirroring
// bots/decision.py's BotDecisionContext.
type DecisionContext struct {
	RoomID     string
	HandID     uint64
	Street     Street
	PlayerID   string
	PlayerName string
	Seat       int
	Hand       []cards.Card
	Board      []cards.Card
	Players    []PlayerView
	PotTotal   int64
	MinBet     int64
	MaxBet     int64
	ToCall     int64
	History    []ActionRecord
}

// Engine decides a bet amount for a seat: -1 folds, 0 checks, MinBet calls,
// anything above MinBet raises (the caller, internal/bet's Rounder, clamps
// and classifies the result).
type Engine interface {
	Decide(ctx context.Context, dc DecisionContext) (int64, error)
}

// normalizeDifficulty folds the spec's "normal" alias onto "medium" per
// registry.py's get_engine_for_difficulty, and defaults an empty string to
// "easy".
func normalizeDifficulty(difficulty string) string {
	switch difficulty {
	case "":
		return "easy"
	case "normal":
		return "medium"
	default:
		return difficulty
	}
}

// Registry resolves a difficulty name to its engine, falling back to the
// tabular "easy" engine for an unrecognized difficulty (registry.py's
// BOT_ENGINE_REGISTRY.get(difficulty, BOT_ENGINE_REGISTRY["easy"])).
type Registry struct {
	easy    Engine
	engines map[string]Engine
}

// NewRegistry wires "easy" to the tabular engine and "medium"/"hard" to
// remote engines over the given HTTP decision service, each falling back
// to "easy" on failure.
func NewRegistry(remote RemoteConfig) *Registry {
	easy := NewTabularEngine()
	return &Registry{
		easy: easy,
		engines: map[string]Engine{
			"easy":   easy,
			"medium": NewRemoteEngine("medium", remote, easy),
			"hard":   NewRemoteEngine("hard", remote, easy),
		},
	}
}

// Engine resolves a difficulty to its engine.
func (r *Registry) Engine(difficulty string) Engine {
	difficulty = normalizeDifficulty(difficulty)
	if e, ok := r.engines[difficulty]; ok {
		return e
	}
	return r.easy
}
