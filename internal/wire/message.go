// Package wire defines the tagged message variants exchanged over the
// broker (internal/broker): the lobby connect handshake, room-control
// requests, and every server<->client event carried on a player's
// per-session queues. Each concrete type pairs with a message_type string;
// unknown tags are rejected at the transport boundary rather than silently
// accepted, replacing the teacher's dynamic-dict event payloads with a
// closed, checkable set.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/holdempoker/tableserver/internal/cards"
)

// Type is the wire-level message_type discriminator.
type Type string

const (
	// Lobby / connect handshake.
	TypeConnect Type = "connect"

	// Server -> client events.
	TypeRoomUpdate         Type = "room-update"
	TypeGameUpdate         Type = "game-update"
	TypeNewGame            Type = "new-game"
	TypeBetRequest         Type = "bet-request"
	TypeBet                Type = "bet"
	TypeSharedCards        Type = "shared-cards"
	TypeCards              Type = "cards"
	TypeDeadPlayer         Type = "dead-player"
	TypeWinnerDesignation  Type = "winner-designation"
	TypeGameOver           Type = "game-over"
	TypeUpdateRankingData  Type = "update-ranking-data"
	TypeFinalHandsStarted  Type = "final-hands-started"
	TypeFinalHandsUpdate   Type = "final-hands-update"
	TypeFinalHandsFinished Type = "final-hands-finished"
	TypePing               Type = "ping"
	TypeDisconnect         Type = "disconnect"
	TypeError              Type = "error"

	// Client -> server.
	TypePong          Type = "pong"
	TypeClientBet     Type = "bet"
	TypeChatMessage   Type = "chat_message"
	TypeInteraction   Type = "interaction"
	TypeRoomControl   Type = "room-control"
)

// Envelope is the on-the-wire shape: a discriminator plus the raw payload,
// so a transport can reject an unrecognized message_type before attempting
// to decode the body.
type Envelope struct {
	MessageType Type            `json:"message_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// PlayerDTO is the textual player projection carried in the connect
// handshake and in room/game update broadcasts.
type PlayerDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Money  int64  `json:"money"`
	Avatar []byte `json:"avatar,omitempty"`
}

// ConnectRequest is the lobby-FIFO message a gateway publishes on a
// player's behalf.
type ConnectRequest struct {
	SessionID    string    `json:"session_id"`
	TimeoutEpoch int64     `json:"timeout_epoch"`
	Player       PlayerDTO `json:"player"`
	RoomID       string    `json:"room_id"`
}

// ConnectAck is the reply sent back on the player's outbound channel.
type ConnectAck struct {
	ServerID string    `json:"server_id"`
	Player   PlayerDTO `json:"player"`
}

func (ConnectAck) Kind() Type { return TypeConnect }

// RoomControlRequest is a room-control FIFO message; add-bot/remove-bot are
// the only actions spec.md names. RequesterID is not in spec.md's literal
// wire shape but is required by game_server_redis.py's room-control loop to
// validate the requester is the room's owner before forwarding.
type RoomControlRequest struct {
	RoomID      string `json:"room_id"`
	Action      string `json:"action"`
	RequesterID string `json:"requester_id"`
	SeatIndex   *int   `json:"seat_index,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
}

func (RoomControlRequest) Kind() Type { return TypeRoomControl }

// PongMessage answers a ping; Ready and StartFinal10Hands are both optional.
type PongMessage struct {
	Ready               *bool `json:"ready,omitempty"`
	StartFinal10Hands   *bool `json:"start_final_10_hands,omitempty"`
}

func (PongMessage) Kind() Type { return TypePong }

// BetMessage is a client's wagering decision: -1 folds, 0 checks, otherwise
// the total amount the player is putting in this street.
type BetMessage struct {
	Amount int64 `json:"amount"`
}

func (BetMessage) Kind() Type { return TypeClientBet }

// ChatMessage is a free-text chat line.
type ChatMessage struct {
	Message string `json:"message"`
}

func (ChatMessage) Kind() Type { return TypeChatMessage }

// InteractionMessage is a generic client gesture (e.g. emote) not otherwise
// modeled; spec.md names the envelope but not a closed action set.
type InteractionMessage struct {
	Action string `json:"action"`
}

func (InteractionMessage) Kind() Type { return TypeInteraction }

// --- Server -> client payloads ---

// RoomUpdate reports the room's seat/owner/ready state.
type RoomUpdate struct {
	RoomID   string      `json:"room_id"`
	OwnerID  string      `json:"owner_id"`
	Seats    []*string   `json:"seats"` // nil entries are empty seats
	Players  []PlayerDTO `json:"players"`
}

func (RoomUpdate) Kind() Type { return TypeRoomUpdate }

// GameUpdate reports the current hand's public state.
type GameUpdate struct {
	HandID    uint64 `json:"hand_id"`
	Street    int    `json:"street"`
	PotTotal  int64  `json:"pot_total"`
	ToActID   string `json:"to_act_id,omitempty"`
}

func (GameUpdate) Kind() Type { return TypeGameUpdate }

// NewGame announces a fresh hand beginning, echoing the dealer seat.
type NewGame struct {
	HandID    uint64 `json:"hand_id"`
	DealerPos int    `json:"dealer_pos"`
}

func (NewGame) Kind() Type { return TypeNewGame }

// BetRequest asks a specific player to act within a deadline.
type BetRequest struct {
	PlayerID string `json:"player_id"`
	MinBet   int64  `json:"min_bet"`
	MaxBet   int64  `json:"max_bet"`
	Deadline int64  `json:"deadline"` // unix seconds
}

func (BetRequest) Kind() Type { return TypeBetRequest }

// BetBroadcast reports a resolved action to the whole room.
type BetBroadcast struct {
	PlayerID   string `json:"player_id"`
	ActionType string `json:"action_type"`
	Amount     int64  `json:"amount"`
}

func (BetBroadcast) Kind() Type { return TypeBet }

// SharedCards reports newly revealed community cards.
type SharedCards struct {
	Street int          `json:"street"`
	Cards  []cards.Card `json:"cards"`
}

func (SharedCards) Kind() Type { return TypeSharedCards }

// HoleCards is sent privately (per target) with a player's own hole cards.
type HoleCards struct {
	PlayerID string       `json:"player_id"`
	Cards    []cards.Card `json:"cards"`
}

func (HoleCards) Kind() Type { return TypeCards }

// DeadPlayer announces a player eliminated from the hand (folded or busted).
type DeadPlayer struct {
	PlayerID string `json:"player_id"`
}

func (DeadPlayer) Kind() Type { return TypeDeadPlayer }

// Winner is one winner's share of one pot.
type Winner struct {
	PlayerID string       `json:"player_id"`
	Amount   int64        `json:"amount"`
	Hand     []cards.Card `json:"hand,omitempty"`
	HandDesc string       `json:"hand_description,omitempty"`
}

// WinnerDesignation announces showdown (or uncontested) results.
type WinnerDesignation struct {
	HandID  uint64   `json:"hand_id"`
	Winners []Winner `json:"winners"`
}

func (WinnerDesignation) Kind() Type { return TypeWinnerDesignation }

// GameOver closes out a hand.
type GameOver struct {
	HandID   uint64 `json:"hand_id"`
	TotalPot int64  `json:"total_pot"`
}

func (GameOver) Kind() Type { return TypeGameOver }

// UpdateRankingData carries refreshed lifetime-stat standings.
type UpdateRankingData struct {
	PlayerID string `json:"player_id"`
	NetBB    float64 `json:"net_bb"`
}

func (UpdateRankingData) Kind() Type { return TypeUpdateRankingData }

// FinalHandsStarted/Update/Finished track the owner-triggered countdown.
type FinalHandsStarted struct{}

func (FinalHandsStarted) Kind() Type { return TypeFinalHandsStarted }

type FinalHandsUpdate struct {
	HandsRemaining int `json:"hands_remaining"`
}

func (FinalHandsUpdate) Kind() Type { return TypeFinalHandsUpdate }

type FinalHandsFinished struct{}

func (FinalHandsFinished) Kind() Type { return TypeFinalHandsFinished }

// Ping asks a player to answer with a Pong before the room's ping deadline.
type Ping struct{}

func (Ping) Kind() Type { return TypePing }

// Disconnect tells a player their channel is being torn down.
type Disconnect struct {
	Reason string `json:"reason,omitempty"`
}

func (Disconnect) Kind() Type { return TypeDisconnect }

// ErrorMessage reports a protocol or game-rule violation back to the
// offending sender; the engine never crashes on these, per spec.md §7.
type ErrorMessage struct {
	Message string `json:"message"`
}

func (ErrorMessage) Kind() Type { return TypeError }

// Encode wraps a payload implementing Kind() into an Envelope.
func Encode(payload interface{ Kind() Type }) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: encode %T: %w", payload, err)
	}
	return Envelope{MessageType: payload.Kind(), Payload: body}, nil
}

// Decode validates the envelope's message_type against the known set and
// unmarshals its payload into out. An unrecognized message_type is rejected
// at this boundary rather than passed through.
func Decode(env Envelope, out interface{ Kind() Type }) error {
	if env.MessageType != out.Kind() {
		return fmt.Errorf("wire: message_type %q does not match expected %q", env.MessageType, out.Kind())
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("wire: decode %T: %w", out, err)
	}
	return nil
}
