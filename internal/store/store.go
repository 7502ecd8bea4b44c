// Package store persists hands, actions, wallets, and statistics (spec.md
// §4.7/§4.8), adapting the teacher's sqlite-backed Database interface
// (pkg/server/internal/db) to the schema this backend actually needs:
// hands/hand_players/hand_actions/chip_transactions/player_daily_stats/
// player_lifetime_stats, written through in the exact transactional order a
// hand produces them.
package store

import (
	"context"
	"time"
)

// HandPlayer is one seated player's starting position in a hand, recorded
// before hole cards are dealt (add_hand_player).
type HandPlayer struct {
	PlayerID      string
	SeatNo        int
	StartingStack int64
	PositionName  string
}

// Action is one resolved betting action (add_hand_action); ActionNum is
// monotonic starting at 1 within a hand.
type Action struct {
	PlayerID   string
	Street     int
	ActionNum  int
	ActionType string
	Amount     int64
	PotBefore  int64
}

// PlayerResult is a player's outcome at hand end (update_hand_player_result).
type PlayerResult struct {
	PlayerID     string
	EndingStack  int64
	IsWinner     bool
	HoleCards    []string
}

// HandStats is the per-hand counters spec.md §4.7 folds into
// player_lifetime_stats, mirroring internal/holdem.Stats without importing
// it (store stays independent of the game engine's package).
type HandStats struct {
	VPIP           bool
	PFR            bool
	ThreeBet       bool
	AggBets        int
	AggCalls       int
	WentToShowdown bool
	WonShowdown    bool
	NetChips       int64
	BigBlind       int64
}

// ChipTransactionType enumerates chip_transactions.tx_type.
type ChipTransactionType string

const (
	TxDailyReset  ChipTransactionType = "daily_reset"
	TxAutoTopup   ChipTransactionType = "auto_topup"
	TxAdminAdjust ChipTransactionType = "admin_adjust"
)

// Store is the full persistence contract a room/hand needs. The hand loop
// calls CreateHand, AddHandPlayer, RecordHoleCards, AddHandAction and
// FinishHand in the sequence spec.md §4.7 lists. The sqlite backend commits
// each call on its own (FinishHand wraps its own updates in one
// transaction), so a hand's rows are not written in a single transaction:
// cross-call batching would require threading a *sql.Tx through the holdem
// package, which has no storage dependency — see DESIGN.md.
type Store interface {
	// EnsurePlayer upserts a wallet-bearing player row (players + the
	// wallet-on-insert trigger), used when a connecting player has never
	// been seen before.
	EnsurePlayer(ctx context.Context, playerID, username, nickname, avatar string) error

	// CheckAndResetDailyChips implements check_and_reset_daily_chips: if
	// wallet.last_reset_date != today, resets chips to init and records a
	// daily_reset chip_transactions row. Returns the wallet balance after
	// any reset.
	CheckAndResetDailyChips(ctx context.Context, playerID string, init int64, today time.Time) (int64, error)

	// RecordChipTransaction appends a chip_transactions row and adjusts
	// wallet.chips by amount (auto_topup, admin_adjust).
	RecordChipTransaction(ctx context.Context, playerID string, txType ChipTransactionType, amount int64, handID *int64, note string) error

	// WalletBalance reads the current chip count.
	WalletBalance(ctx context.Context, playerID string) (int64, error)

	// UpdatePlayerWallet sets wallet.chips directly (update_player_wallet,
	// called at each hand boundary).
	UpdatePlayerWallet(ctx context.Context, playerID string, chips int64) error

	// CreateHand inserts a hands row and returns its ID.
	CreateHand(ctx context.Context, tableID string, smallBlind, bigBlind int64) (int64, error)

	// AddHandPlayer records a seated player's starting position.
	AddHandPlayer(ctx context.Context, handID int64, hp HandPlayer) error

	// RecordHoleCards fills in a hand_players row's hole_cards once dealt.
	RecordHoleCards(ctx context.Context, handID int64, playerID string, holeCards []string) error

	// AddHandAction appends one resolved action.
	AddHandAction(ctx context.Context, handID int64, a Action) error

	// FinishHand closes out a hand: board cards, total pot, per-player
	// results, and folds each player's HandStats into daily/lifetime stats.
	FinishHand(ctx context.Context, handID int64, tableID string, boardCards []string, totalPot int64, results []PlayerResult, stats map[string]HandStats, endedAt time.Time) error

	// ListPlayerIDs returns every known player ID, used by the daily
	// settlement entry point to sweep every wallet (daily_settlement_cron.py's
	// "for each known player" loop).
	ListPlayerIDs(ctx context.Context) ([]string, error)
}
