// Package player implements the Player/Seat model: a money-and-identity
// record plus a pluggable Seat capability (human channel or bot decision
// engine) and the per-hand Rob Pike state machine tracking AT_TABLE,
// IN_GAME, FOLDED, ALL_IN, and LEFT.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/holdempoker/tableserver/internal/cards"
	"github.com/holdempoker/tableserver/internal/statemachine"
)

const maxAvatarBytes = 150_000

// ErrInsufficientFunds is returned by TakeMoney when the player's stack
// can't cover the requested amount.
var ErrInsufficientFunds = errors.New("player: insufficient funds")

// ErrNonPositiveAmount is returned by AddMoney/TakeMoney for a non-positive
// argument.
var ErrNonPositiveAmount = errors.New("player: amount must be strictly positive")

// State names the player's current table/hand lifecycle position.
type State string

const (
	StateAtTable State = "AT_TABLE"
	StateInGame  State = "IN_GAME"
	StateFolded  State = "FOLDED"
	StateAllIn   State = "ALL_IN"
	StateLeft    State = "LEFT"
)

// Fn is the player's own state function, generic over Player.
type Fn = statemachine.Fn[Player]

// Player is the identity-and-stack record shared by both the human
// (channel-backed) and bot (engine-backed) seat variants.
type Player struct {
	ID     string
	Name   string
	Money  int64
	Avatar []byte
	Ready  bool
	Seat   int // table position, -1 until assigned

	// Per-hand state, reset by ResetForNewHand.
	StartingStack int64
	Hole          []cards.Card
	CurrentBet    int64
	HasFolded     bool
	IsAllIn       bool
	IsDealer      bool
	LastAction    time.Time

	machine *statemachine.Machine[Player]
}

// New creates a player with the given starting money. An oversized avatar
// (>150KB, spec.md §3) is dropped rather than rejected outright.
func New(id, name string, money int64, avatar []byte) (*Player, error) {
	if money < 0 {
		return nil, fmt.Errorf("player: money must be non-negative, got %d", money)
	}
	if len(avatar) > maxAvatarBytes {
		avatar = nil
	}
	p := &Player{
		ID:     id,
		Name:   name,
		Money:  money,
		Avatar: avatar,
		Seat:   -1,
	}
	p.machine = statemachine.New(p, stateAtTable)
	return p, nil
}

// TakeMoney decreases the player's stack by amount, failing if insufficient.
// old - new == amount on success, per spec.md §8.
func (p *Player) TakeMoney(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if p.Money < amount {
		return ErrInsufficientFunds
	}
	p.Money -= amount
	return nil
}

// AddMoney increases the player's stack by a strictly positive amount.
func (p *Player) AddMoney(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	p.Money += amount
	return nil
}

// ResetForNewHand clears per-hand state and re-enters IN_GAME, preserving
// table-level identity, money, and seat.
func (p *Player) ResetForNewHand() {
	p.Hole = make([]cards.Card, 0, 2)
	p.StartingStack = p.Money
	p.CurrentBet = 0
	p.IsDealer = false
	p.HasFolded = false
	p.IsAllIn = false
	p.LastAction = time.Now()
	p.machine.Set(stateInGame)
}

// SetState forces a transition to the named state.
func (p *Player) SetState(s State) {
	switch s {
	case StateAtTable:
		p.machine.Set(stateAtTable)
	case StateInGame:
		p.machine.Set(stateInGame)
	case StateFolded:
		p.machine.Set(stateFolded)
	case StateAllIn:
		p.machine.Set(stateAllIn)
	case StateLeft:
		p.machine.Set(stateLeft)
	}
}

// CurrentState reports the player's lifecycle state as a string.
func (p *Player) CurrentState() State {
	if p.machine.Done() {
		return StateLeft
	}
	switch fnEquals(p.machine.Current(), stateAtTable) {
	case true:
		return StateAtTable
	}
	switch fnEquals(p.machine.Current(), stateInGame) {
	case true:
		return StateInGame
	}
	switch fnEquals(p.machine.Current(), stateFolded) {
	case true:
		return StateFolded
	}
	switch fnEquals(p.machine.Current(), stateAllIn) {
	case true:
		return StateAllIn
	}
	return StateLeft
}

func fnEquals(a, b Fn) bool {
	return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
}

// IsActiveInGame reports whether the player is still contesting the pot
// (in a betting round or all-in, but not folded or left).
func (p *Player) IsActiveInGame() bool {
	s := p.CurrentState()
	return s == StateInGame || s == StateAllIn
}

// IsAtTable reports whether the player still occupies a seat.
func (p *Player) IsAtTable() bool {
	return p.CurrentState() != StateLeft
}

func stateAtTable(p *Player, cb func(string, statemachine.Event)) Fn {
	if p.HasFolded {
		if cb != nil {
			cb("AT_TABLE", statemachine.Exited)
		}
		return stateFolded
	}
	if cb != nil {
		cb("AT_TABLE", statemachine.Entered)
	}
	return stateAtTable
}

func stateInGame(p *Player, cb func(string, statemachine.Event)) Fn {
	if p.HasFolded {
		if cb != nil {
			cb("IN_GAME", statemachine.Exited)
		}
		return stateFolded
	}
	if p.Money == 0 && p.CurrentBet > 0 {
		if cb != nil {
			cb("IN_GAME", statemachine.Exited)
		}
		return stateAllIn
	}
	p.HasFolded = false
	p.IsAllIn = false
	if cb != nil {
		cb("IN_GAME", statemachine.Entered)
	}
	return stateInGame
}

func stateFolded(p *Player, cb func(string, statemachine.Event)) Fn {
	if !p.HasFolded {
		if cb != nil {
			cb("FOLDED", statemachine.Exited)
		}
		return stateInGame
	}
	p.HasFolded = true
	p.IsAllIn = false
	if cb != nil {
		cb("FOLDED", statemachine.Entered)
	}
	return stateFolded
}

func stateAllIn(p *Player, cb func(string, statemachine.Event)) Fn {
	if p.HasFolded {
		if cb != nil {
			cb("ALL_IN", statemachine.Exited)
		}
		return stateFolded
	}
	if p.Money > 0 {
		if cb != nil {
			cb("ALL_IN", statemachine.Exited)
		}
		return stateInGame
	}
	p.HasFolded = false
	p.IsAllIn = true
	if cb != nil {
		cb("ALL_IN", statemachine.Entered)
	}
	return stateAllIn
}

func stateLeft(p *Player, cb func(string, statemachine.Event)) Fn {
	p.HasFolded = false
	p.IsAllIn = false
	if cb != nil {
		cb("LEFT", statemachine.Entered)
	}
	return nil
}

// Channel is the minimal transport capability a Seat needs; it is the same
// shape as broker.Channel, restated here so this package doesn't import
// internal/broker (keeping the dependency direction leaf-ward).
type Channel interface {
	Send(ctx context.Context, msg any) error
	Recv(ctx context.Context, deadline time.Time) (json.RawMessage, error)
	Close() error
}

// Decide is a bot's synchronous decision function, set only on bot seats.
// It replaces the teacher's class hierarchy (Player -> PlayerServer ->
// BotPlayerServer) with the re-architected "Seat = Human{channel} |
// Bot{engine}" shape spec.md §9 calls for: internal/holdem's
// Hand.requestAction calls Decide directly when present instead of
// round-tripping a bet-request
// over the channel. decisionContext is the caller-built snapshot of the
// live hand (internal/bot.DecisionContext for every bot this repo builds);
// it's typed any here so this leaf package doesn't import internal/bot.
type Decide func(ctx context.Context, decisionContext any) (amount int64, err error)

// Server wraps a Player with its connection-layer state: the channel
// (real for humans, a swallow-everything stub for bots), connectedness,
// and the final-10-hands opt-in flag.
type Server struct {
	*Player

	channel   Channel
	connected bool

	// Decide is nil for a human seat; set for a bot seat.
	Decide Decide

	WantsFinal10Hands bool
}

// NewServer attaches a channel (and optional bot decision function) to a
// Player, marking it connected.
func NewServer(p *Player, ch Channel, decide Decide) *Server {
	return &Server{Player: p, channel: ch, connected: true, Decide: decide}
}

// Connected reports whether the channel is still live.
func (s *Server) Connected() bool { return s.connected }

// Channel returns the current transport; UpdateChannel replaces it without
// touching Player's money/seat (spec.md §4.4: reconnect must not overwrite
// the in-memory stack with a stale DB snapshot).
func (s *Server) Channel() Channel { return s.channel }

// UpdateChannel swaps in a new channel on reconnect, closing the old one
// after sending it a best-effort disconnect notice.
func (s *Server) UpdateChannel(newChannel Channel) {
	old := s.channel
	_ = old.Send(context.Background(), map[string]string{"message_type": "disconnect"})
	s.channel = newChannel
	s.connected = true
	_ = old.Close()
}

// Disconnect closes the channel after a best-effort disconnect notice and
// marks the server disconnected. Idempotent.
func (s *Server) Disconnect() {
	if !s.connected {
		return
	}
	_ = s.channel.Send(context.Background(), map[string]string{"message_type": "disconnect"})
	_ = s.channel.Close()
	s.connected = false
}

// Send best-effort delivers msg, swallowing a transport error (mirrors the
// teacher's try_send_message / TrySendMessage helper).
func (s *Server) Send(ctx context.Context, msg any) bool {
	if err := s.channel.Send(ctx, msg); err != nil {
		return false
	}
	return true
}

// Recv reads the next inbound message from the channel, returning the
// channel's error unchanged.
func (s *Server) Recv(ctx context.Context, deadline time.Time) (json.RawMessage, error) {
	return s.channel.Recv(ctx, deadline)
}
