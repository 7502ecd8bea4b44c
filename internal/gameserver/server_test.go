package gameserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdempoker/tableserver/internal/player"
	"github.com/holdempoker/tableserver/internal/room"
	"github.com/holdempoker/tableserver/internal/wire"
)

type fakeQueue struct {
	messages chan json.RawMessage
}

func newFakeQueue(msgs ...string) *fakeQueue {
	q := &fakeQueue{messages: make(chan json.RawMessage, len(msgs)+1)}
	for _, m := range msgs {
		q.messages <- json.RawMessage(m)
	}
	return q
}

func (q *fakeQueue) Pop(ctx context.Context, pollInterval time.Duration) (json.RawMessage, error) {
	select {
	case m := <-q.messages:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeChannel struct {
	sent   []any
	closed bool
}

func (c *fakeChannel) Send(ctx context.Context, msg any) error {
	c.sent = append(c.sent, msg)
	return nil
}
func (c *fakeChannel) Recv(ctx context.Context, deadline time.Time) (json.RawMessage, error) {
	return nil, context.DeadlineExceeded
}
func (c *fakeChannel) Close() error { c.closed = true; return nil }

type fakeRooms struct {
	rooms map[string]*room.Room
	clock quartz.Clock
}

func newFakeRooms(clock quartz.Clock) *fakeRooms {
	return &fakeRooms{rooms: make(map[string]*room.Room), clock: clock}
}

func (f *fakeRooms) EnsureRoom(ctx context.Context, roomID string) (*room.Room, error) {
	if r, ok := f.rooms[roomID]; ok {
		return r, nil
	}
	r := room.New(roomID, false, 6, f.clock, room.Hooks{})
	f.rooms[roomID] = r
	return r, nil
}

func newTestServer(t *testing.T) (*Server, *fakeRooms, map[string]*fakeChannel) {
	channels := make(map[string]*fakeChannel)
	rooms := newFakeRooms(quartz.NewMock(t))
	s := &Server{
		ID:    "srv1",
		Rooms: rooms,
		Channels: func(playerID, sessionID string) player.Channel {
			ch := &fakeChannel{}
			channels[playerID] = ch
			return ch
		},
		Clock: fixedClock{t: time.Unix(1000, 0)},
	}
	return s, rooms, channels
}

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func connectMsg(id, name string, money, timeoutEpoch int64, roomID string) string {
	env := map[string]any{
		"timeout_epoch": timeoutEpoch,
		"session_id":    "sess-1",
		"room_id":       roomID,
		"player": map[string]any{
			"id":    id,
			"name":  name,
			"money": money,
		},
	}
	body, _ := json.Marshal(env)
	return string(body)
}

func TestConnectPlayerValidatesAndAcks(t *testing.T) {
	s, _, channels := newTestServer(t)

	ps, roomID, err := s.connectPlayer(context.Background(), json.RawMessage(connectMsg("a", "Alice", 2000, 2000, "room1")))
	require.NoError(t, err)
	assert.Equal(t, "room1", roomID)
	assert.Equal(t, int64(2000), ps.Money)

	require.Len(t, channels["a"].sent, 1)
	env := channels["a"].sent[0].(wire.Envelope)
	assert.Equal(t, wire.TypeConnect, env.MessageType)
}

func TestConnectPlayerRejectsExpiredTimeout(t *testing.T) {
	s, _, _ := newTestServer(t)

	_, _, err := s.connectPlayer(context.Background(), json.RawMessage(connectMsg("a", "Alice", 2000, 1, "room1")))
	assert.ErrorIs(t, err, ErrConnectTimeout)
}

func TestConnectPlayerRejectsMissingField(t *testing.T) {
	s, _, _ := newTestServer(t)

	raw := json.RawMessage(`{"timeout_epoch":5000,"session_id":"s1","room_id":"r1","player":{"name":"Alice","money":100}}`)
	_, _, err := s.connectPlayer(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "player.id")
}

func TestRunLobbyLoopJoinsPlayerIntoRoom(t *testing.T) {
	s, rooms, _ := newTestServer(t)
	s.Lobby = newFakeQueue(connectMsg("a", "Alice", 1000, 5000, "room1"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.RunLobbyLoop(ctx)

	r := rooms.rooms["room1"]
	require.NotNil(t, r)
	assert.Equal(t, 1, r.PlayerCount())
}

type fakeBots struct{}

func (fakeBots) NewBot(id, name string, money int64, difficulty string) (*player.Server, error) {
	pl, err := player.New(id, name, money, nil)
	if err != nil {
		return nil, err
	}
	return player.NewServer(pl, &fakeChannel{}, func(ctx context.Context, decisionContext any) (int64, error) { return 0, nil }), nil
}

func TestRoomControlAddBotRequiresOwner(t *testing.T) {
	s, rooms, _ := newTestServer(t)
	s.Bots = fakeBots{}

	r, err := rooms.EnsureRoom(context.Background(), "room1")
	require.NoError(t, err)
	owner, err := player.New("owner", "Owner", 1000, nil)
	require.NoError(t, err)
	require.NoError(t, r.Join(player.NewServer(owner, &fakeChannel{}, nil)))

	seat := 1
	s.handleRoomControl(context.Background(), wire.RoomControlRequest{
		RoomID:      "room1",
		Action:      "add-bot",
		RequesterID: "not-owner",
		SeatIndex:   &seat,
	})
	assert.Equal(t, 1, r.PlayerCount(), "add-bot from a non-owner must not seat a bot")

	s.handleRoomControl(context.Background(), wire.RoomControlRequest{
		RoomID:      "room1",
		Action:      "add-bot",
		RequesterID: "owner",
		SeatIndex:   &seat,
	})
	assert.Equal(t, 2, r.PlayerCount())
}

func TestConnectPlayerAppliesDailyResetFromStore(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Store = &fakeStore{}
	s.InitMoney = 3000

	ps, _, err := s.connectPlayer(context.Background(), json.RawMessage(connectMsg("a", "Alice", 50, 2000, "room1")))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), ps.Money, "login must adopt the wallet's post-reset balance, not the client-supplied money")
}

func TestRoomControlRemoveBotByID(t *testing.T) {
	s, rooms, _ := newTestServer(t)
	s.Bots = fakeBots{}

	r, err := rooms.EnsureRoom(context.Background(), "room1")
	require.NoError(t, err)
	owner, err := player.New("owner", "Owner", 1000, nil)
	require.NoError(t, err)
	require.NoError(t, r.Join(player.NewServer(owner, &fakeChannel{}, nil)))

	bot, err := player.New("bot1", "Bot", 1000, nil)
	require.NoError(t, err)
	require.NoError(t, r.AddBot("owner", 1, player.NewServer(bot, &fakeChannel{}, nil)))
	require.Equal(t, 2, r.PlayerCount())

	s.handleRoomControl(context.Background(), wire.RoomControlRequest{
		RoomID:      "room1",
		Action:      "remove-bot",
		RequesterID: "owner",
		BotID:       "bot1",
	})
	assert.Equal(t, 1, r.PlayerCount(), "remove-bot addressed by bot_id must remove the bot seat")
}
