// Package gameserver implements the lobby connect handshake and the
// room-control routing loop (spec.md §4.5): validating connect requests
// popped off the broker's lobby FIFO, wiring up each player's per-session
// channel, handing them to the addressed room, and forwarding owner-only
// add-bot/remove-bot requests from the room-control FIFO.
package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/redis/go-redis/v9"

	"github.com/holdempoker/tableserver/internal/broker"
	"github.com/holdempoker/tableserver/internal/player"
	"github.com/holdempoker/tableserver/internal/room"
	"github.com/holdempoker/tableserver/internal/store"
	"github.com/holdempoker/tableserver/internal/wire"
)

// connectAvatarLimit mirrors game_server_redis.py's connect-time avatar
// cap, tighter than player.New's own 150KB storage cap: an oversized
// avatar is silently dropped rather than rejected.
const connectAvatarLimit = 50_000

const defaultBotStack = 3000 // INIT_MONEY; a seated bot buys in at the table default

// ErrConnectTimeout is returned when a connect request's timeout_epoch has
// already elapsed by the time it's popped off the lobby queue.
var ErrConnectTimeout = errors.New("gameserver: connection timed out")

// Queue is the narrow slice of *broker.MessageQueue this package calls,
// restated as an interface so tests can substitute a fake lobby/room-control
// queue without a live Redis server (the same narrowing internal/broker
// itself applies to *redis.Client).
type Queue interface {
	Pop(ctx context.Context, pollInterval time.Duration) (json.RawMessage, error)
}

// Clock is narrowed to Now so connect-timeout checks are testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Rooms resolves a room_id to a live *room.Room, creating one on first use.
// internal/gameserver depends on this rather than a concrete registry so
// cmd/pokersrv can decide how rooms are constructed and persisted.
type Rooms interface {
	EnsureRoom(ctx context.Context, roomID string) (*room.Room, error)
}

// BotFactory builds a bot seat's decision function for the requested
// difficulty; internal/bot supplies the concrete tabular/remote engines.
type BotFactory interface {
	NewBot(id, name string, money int64, difficulty string) (*player.Server, error)
}

// ChannelFactory builds the duplex channel for a freshly connected player's
// session. Defaults to a Redis-backed channel named after the original
// server's "poker5:player-{id}:session-{sid}:{I,O}" convention; swappable
// for tests.
type ChannelFactory func(playerID, sessionID string) player.Channel

// Server consumes the lobby and room-control FIFOs, translating wire
// traffic into internal/room operations.
type Server struct {
	ID          string
	Lobby       Queue
	RoomControl Queue
	Rooms       Rooms
	Bots        BotFactory
	Channels    ChannelFactory
	Log         slog.Logger
	Clock       Clock

	// Store runs check_and_reset_daily_chips at login (spec.md §4.8); nil
	// skips the reset, used by tests that don't exercise persistence.
	Store     store.Store
	InitMoney int64
}

// New builds a Server whose channels are Redis-backed over client.
func New(id string, client *redis.Client, lobby, roomControl Queue, rooms Rooms, bots BotFactory, log slog.Logger) *Server {
	return &Server{
		ID:          id,
		Lobby:       lobby,
		RoomControl: roomControl,
		Rooms:       rooms,
		Bots:        bots,
		Channels: func(playerID, sessionID string) player.Channel {
			return broker.NewRedisChannel(client,
				fmt.Sprintf("poker5:player-%s:session-%s:I", playerID, sessionID),
				fmt.Sprintf("poker5:player-%s:session-%s:O", playerID, sessionID),
			)
		},
		Log:   log,
		Clock: realClock{},
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Errorf(format, args...)
	}
}

// RunLobbyLoop pops connect requests off the lobby FIFO forever, joining
// each validated player into their requested room. Returns when ctx is
// canceled.
func (s *Server) RunLobbyLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		raw, err := s.Lobby.Pop(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, broker.ErrMessageTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logf("gameserver: lobby pop: %v", err)
			continue
		}

		ps, roomID, err := s.connectPlayer(ctx, raw)
		if err != nil {
			s.logf("gameserver: unable to connect player: %v", err)
			continue
		}
		if roomID == "" {
			s.logf("gameserver: player %s connected without a room_id", ps.ID)
			continue
		}

		rm, err := s.Rooms.EnsureRoom(ctx, roomID)
		if err != nil {
			s.logf("gameserver: ensure room %s: %v", roomID, err)
			continue
		}
		if err := rm.Join(ps); err != nil {
			s.logf("gameserver: join room %s: %v", roomID, err)
			if env, encErr := wire.Encode(wire.ErrorMessage{Message: err.Error()}); encErr == nil {
				ps.Send(ctx, env)
			}
		}
	}
}

// connectPlayer validates a lobby message field-by-field (mirroring
// game_server_redis.py's _connect_player, which raises a distinct
// MessageFormatError per missing/invalid attribute rather than one generic
// decode failure), builds the player's session channel, and sends the
// connect acknowledgement.
func (s *Server) connectPlayer(ctx context.Context, raw json.RawMessage) (*player.Server, string, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", &broker.MessageFormatError{Attribute: "body", Desc: "not a JSON object"}
	}

	timeoutEpoch, err := requiredInt64(env, "timeout_epoch")
	if err != nil {
		return nil, "", err
	}
	if timeoutEpoch < s.Clock.Now().Unix() {
		return nil, "", ErrConnectTimeout
	}

	sessionID, err := requiredString(env, "session_id")
	if err != nil {
		return nil, "", err
	}

	playerRaw, ok := env["player"]
	if !ok {
		return nil, "", &broker.MessageFormatError{Attribute: "player", Desc: "missing attribute"}
	}
	var playerFields map[string]json.RawMessage
	if err := json.Unmarshal(playerRaw, &playerFields); err != nil {
		return nil, "", &broker.MessageFormatError{Attribute: "player", Desc: "not a JSON object"}
	}

	playerID, err := requiredString(playerFields, "player.id")
	if err != nil {
		return nil, "", err
	}
	playerName, err := requiredString(playerFields, "player.name")
	if err != nil {
		return nil, "", err
	}
	playerMoney, err := requiredInt64(playerFields, "player.money")
	if err != nil {
		return nil, "", err
	}

	var avatar []byte
	if avatarRaw, ok := playerFields["avatar"]; ok {
		_ = json.Unmarshal(avatarRaw, &avatar)
		if len(avatar) > connectAvatarLimit {
			avatar = nil
		}
	}

	roomID := ""
	if roomRaw, ok := env["room_id"]; ok {
		_ = json.Unmarshal(roomRaw, &roomID)
	}

	pl, err := player.New(playerID, playerName, playerMoney, avatar)
	if err != nil {
		return nil, "", err
	}

	if s.Store != nil {
		if err := s.Store.EnsurePlayer(ctx, playerID, playerID, playerName, ""); err != nil {
			s.logf("gameserver: ensure player %s: %v", playerID, err)
		} else if balance, err := s.Store.CheckAndResetDailyChips(ctx, playerID, s.InitMoney, s.Clock.Now()); err != nil {
			s.logf("gameserver: daily reset for %s at login: %v", playerID, err)
		} else {
			pl.Money = balance
		}
	}

	ch := s.Channels(playerID, sessionID)
	ps := player.NewServer(pl, ch, nil)

	ack, err := wire.Encode(wire.ConnectAck{
		ServerID: s.ID,
		Player:   wire.PlayerDTO{ID: pl.ID, Name: pl.Name, Money: pl.Money, Avatar: pl.Avatar},
	})
	if err == nil {
		ps.Send(ctx, ack)
	}

	return ps, roomID, nil
}

func requiredString(fields map[string]json.RawMessage, attr string) (string, error) {
	raw, ok := fields[attr]
	if !ok {
		return "", &broker.MessageFormatError{Attribute: attr, Desc: "missing attribute"}
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", &broker.MessageFormatError{Attribute: attr, Desc: "invalid value"}
	}
	return v, nil
}

func requiredInt64(fields map[string]json.RawMessage, attr string) (int64, error) {
	raw, ok := fields[attr]
	if !ok {
		return 0, &broker.MessageFormatError{Attribute: attr, Desc: "missing attribute"}
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, &broker.MessageFormatError{Attribute: attr, Desc: "not a number"}
	}
	return v, nil
}

// RunRoomControlLoop pops add-bot/remove-bot requests off the room-control
// FIFO forever, routing each to its addressed room. Returns when ctx is
// canceled.
func (s *Server) RunRoomControlLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		raw, err := s.RoomControl.Pop(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, broker.ErrMessageTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logf("gameserver: room-control pop: %v", err)
			continue
		}

		var req wire.RoomControlRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			s.logf("gameserver: malformed room-control message: %v", err)
			continue
		}
		if req.RoomID == "" || req.Action == "" || req.RequesterID == "" {
			continue
		}
		s.handleRoomControl(ctx, req)
	}
}

func (s *Server) handleRoomControl(ctx context.Context, req wire.RoomControlRequest) {
	rm, err := s.Rooms.EnsureRoom(ctx, req.RoomID)
	if err != nil {
		s.logf("gameserver: room-control: room %s: %v", req.RoomID, err)
		return
	}

	var actionErr error
	switch req.Action {
	case "add-bot":
		if req.SeatIndex == nil {
			return
		}
		difficulty := req.Difficulty
		if difficulty == "" {
			difficulty = "easy"
		}
		if s.Bots == nil {
			actionErr = errors.New("gameserver: bot seating is not configured")
			break
		}
		botID := fmt.Sprintf("bot-%s-seat%d", req.RoomID, *req.SeatIndex)
		bot, err := s.Bots.NewBot(botID, "Bot", defaultBotStack, difficulty)
		if err != nil {
			actionErr = err
			break
		}
		actionErr = rm.AddBot(req.RequesterID, *req.SeatIndex, bot)
	case "remove-bot":
		switch {
		case req.SeatIndex != nil:
			actionErr = rm.RemoveBot(req.RequesterID, *req.SeatIndex)
		case req.BotID != "":
			actionErr = rm.RemoveBotByID(req.RequesterID, req.BotID)
		default:
			return
		}
	default:
		s.logf("gameserver: unknown room-control action %q", req.Action)
		return
	}

	if actionErr != nil {
		s.deliverError(ctx, rm, req.RequesterID, actionErr)
	}
}

func (s *Server) deliverError(ctx context.Context, rm *room.Room, playerID string, actionErr error) {
	p, ok := rm.Player(playerID)
	if !ok {
		return
	}
	env, err := wire.Encode(wire.ErrorMessage{Message: actionErr.Error()})
	if err != nil {
		return
	}
	p.Send(ctx, env)
}
