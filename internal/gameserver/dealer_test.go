package gameserver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdempoker/tableserver/internal/holdem"
	"github.com/holdempoker/tableserver/internal/player"
	"github.com/holdempoker/tableserver/internal/room"
	"github.com/holdempoker/tableserver/internal/store"
	"github.com/holdempoker/tableserver/internal/wire"
)

// autoFoldChannel answers every bet-request with an immediate fold so a
// dealt hand resolves in one action per seat without needing a real clock
// wait.
type autoFoldChannel struct {
	mu   sync.Mutex
	sent []wire.Envelope
}

func (c *autoFoldChannel) Send(ctx context.Context, msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg.(wire.Envelope))
	return nil
}

func (c *autoFoldChannel) Recv(ctx context.Context, deadline time.Time) (json.RawMessage, error) {
	env, err := wire.Encode(wire.BetMessage{Amount: -1})
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func (c *autoFoldChannel) Close() error { return nil }

type chipTx struct {
	PlayerID string
	TxType   store.ChipTransactionType
	Amount   int64
}

type fakeStore struct {
	mu            sync.Mutex
	nextHandID    int64
	handActions   []store.Action
	finished      bool
	results       []store.PlayerResult
	chipTxs       []chipTx
	walletUpdates map[string]int64
}

func (s *fakeStore) EnsurePlayer(ctx context.Context, playerID, username, nickname, avatar string) error {
	return nil
}
func (s *fakeStore) CheckAndResetDailyChips(ctx context.Context, playerID string, init int64, today time.Time) (int64, error) {
	return init, nil
}
func (s *fakeStore) RecordChipTransaction(ctx context.Context, playerID string, txType store.ChipTransactionType, amount int64, handID *int64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chipTxs = append(s.chipTxs, chipTx{PlayerID: playerID, TxType: txType, Amount: amount})
	return nil
}
func (s *fakeStore) WalletBalance(ctx context.Context, playerID string) (int64, error) { return 0, nil }
func (s *fakeStore) UpdatePlayerWallet(ctx context.Context, playerID string, chips int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.walletUpdates == nil {
		s.walletUpdates = make(map[string]int64)
	}
	s.walletUpdates[playerID] = chips
	return nil
}
func (s *fakeStore) CreateHand(ctx context.Context, tableID string, smallBlind, bigBlind int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandID++
	return s.nextHandID, nil
}
func (s *fakeStore) AddHandPlayer(ctx context.Context, handID int64, hp store.HandPlayer) error {
	return nil
}
func (s *fakeStore) RecordHoleCards(ctx context.Context, handID int64, playerID string, holeCards []string) error {
	return nil
}
func (s *fakeStore) AddHandAction(ctx context.Context, handID int64, a store.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handActions = append(s.handActions, a)
	return nil
}
func (s *fakeStore) FinishHand(ctx context.Context, handID int64, tableID string, boardCards []string, totalPot int64, results []store.PlayerResult, stats map[string]store.HandStats, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.results = results
	return nil
}
func (s *fakeStore) ListPlayerIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestDealerPlaysHandAndPersists(t *testing.T) {
	a, err := player.New("A", "Alice", 3000, nil)
	require.NoError(t, err)
	b, err := player.New("B", "Bob", 3000, nil)
	require.NoError(t, err)

	seats := []*holdem.Seat{
		{Server: player.NewServer(a, &autoFoldChannel{}, nil)},
		{Server: player.NewServer(b, &autoFoldChannel{}, nil)},
	}

	fs := &fakeStore{}
	d := &Dealer{
		Store:            fs,
		Clock:            quartz.NewMock(t),
		SmallBlind:       5,
		BigBlind:         10,
		BetTimeout:       time.Second,
		TimeoutTolerance: 0,
	}

	var broadcasts []room.Event
	var mu sync.Mutex
	broadcast := func(ev room.Event) {
		mu.Lock()
		defer mu.Unlock()
		broadcasts = append(broadcasts, ev)
	}

	play := d.PlayHand("table1", broadcast)
	result, err := play(context.Background(), seats, 0)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, fs.finished, "FinishHand must be called once the hand completes")
	assert.NotEmpty(t, fs.handActions, "blinds and the fold must be persisted as hand_actions")
	assert.Len(t, fs.results, 2)
	assert.Len(t, fs.walletUpdates, 2, "finishHand must sync every seated player's wallet, not just on room leave")

	var sawBet bool
	for _, ev := range broadcasts {
		if ev.Type == "bet" {
			sawBet = true
		}
	}
	assert.True(t, sawBet, "at least one bet-result event must be broadcast")
}

func TestDealerAutoTopsUpShortStackBeforeDealing(t *testing.T) {
	a, err := player.New("A", "Alice", 3, nil) // far below the big blind
	require.NoError(t, err)
	b, err := player.New("B", "Bob", 3000, nil)
	require.NoError(t, err)

	seats := []*holdem.Seat{
		{Server: player.NewServer(a, &autoFoldChannel{}, nil)},
		{Server: player.NewServer(b, &autoFoldChannel{}, nil)},
	}

	fs := &fakeStore{}
	d := &Dealer{
		Store:            fs,
		Clock:            quartz.NewMock(t),
		SmallBlind:       5,
		BigBlind:         10,
		BetTimeout:       time.Second,
		TimeoutTolerance: 0,
		InitMoney:        3000,
	}

	play := d.PlayHand("table1", func(room.Event) {})
	result, err := play(context.Background(), seats, 0)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(2995), a.Money, "a short stack is topped up to InitMoney (3000) before the hand deals, then loses its 5-chip small blind when it folds first")

	var toppedUp bool
	for _, tx := range fs.chipTxs {
		if tx.PlayerID == "A" && tx.TxType == store.TxAutoTopup && tx.Amount == 2997 {
			toppedUp = true
		}
	}
	assert.True(t, toppedUp, "the topup must be persisted as a TxAutoTopup chip transaction")
}
