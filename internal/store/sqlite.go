package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite is the sqlite3-backed Store, grounded on pkg/server/internal/db.DB:
// a thin wrapper around *sql.DB with one method per persisted operation,
// opened with WAL journaling and foreign keys on (spec.md §6).
type SQLite struct {
	db *sql.DB
}

// Open creates (or migrates) the database at path and returns a ready
// Store. Migrations run via goose against the embedded migrations/ tree.
func Open(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 single-writer discipline, mirrored from the teacher's *sql.DB wrapping

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) EnsurePlayer(ctx context.Context, playerID, username, nickname, avatar string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, username, nickname, avatar)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET nickname = excluded.nickname, avatar = excluded.avatar, last_login_at = CURRENT_TIMESTAMP
	`, playerID, username, nickname, avatar)
	if err != nil {
		return fmt.Errorf("store: ensure player %q: %w", playerID, err)
	}
	return nil
}

func (s *SQLite) CheckAndResetDailyChips(ctx context.Context, playerID string, init int64, today time.Time) (int64, error) {
	todayStr := today.Format("2006-01-02")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: daily reset begin: %w", err)
	}
	defer tx.Rollback()

	var chips int64
	var lastReset string
	err = tx.QueryRowContext(ctx, `SELECT chips, last_reset_date FROM wallet WHERE player_id = ?`, playerID).Scan(&chips, &lastReset)
	if err != nil {
		return 0, fmt.Errorf("store: daily reset read wallet %q: %w", playerID, err)
	}

	if lastReset != todayStr {
		delta := init - chips
		if _, err := tx.ExecContext(ctx, `UPDATE wallet SET chips = ?, last_reset_date = ?, updated_at = CURRENT_TIMESTAMP WHERE player_id = ?`, init, todayStr, playerID); err != nil {
			return 0, fmt.Errorf("store: daily reset update wallet %q: %w", playerID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chip_transactions (player_id, tx_date, tx_type, amount, note)
			VALUES (?, ?, ?, ?, 'daily reset')
		`, playerID, todayStr, TxDailyReset, delta); err != nil {
			return 0, fmt.Errorf("store: daily reset record transaction %q: %w", playerID, err)
		}
		chips = init
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: daily reset commit: %w", err)
	}
	return chips, nil
}

func (s *SQLite) RecordChipTransaction(ctx context.Context, playerID string, txType ChipTransactionType, amount int64, handID *int64, note string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: record transaction begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chip_transactions (player_id, tx_type, amount, hand_id, note)
		VALUES (?, ?, ?, ?, ?)
	`, playerID, txType, amount, handID, note); err != nil {
		return fmt.Errorf("store: record transaction %q: %w", playerID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE wallet SET chips = chips + ?, updated_at = CURRENT_TIMESTAMP WHERE player_id = ?`, amount, playerID); err != nil {
		return fmt.Errorf("store: record transaction adjust wallet %q: %w", playerID, err)
	}
	return tx.Commit()
}

func (s *SQLite) WalletBalance(ctx context.Context, playerID string) (int64, error) {
	var chips int64
	err := s.db.QueryRowContext(ctx, `SELECT chips FROM wallet WHERE player_id = ?`, playerID).Scan(&chips)
	if err != nil {
		return 0, fmt.Errorf("store: wallet balance %q: %w", playerID, err)
	}
	return chips, nil
}

func (s *SQLite) UpdatePlayerWallet(ctx context.Context, playerID string, chips int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE wallet SET chips = ?, updated_at = CURRENT_TIMESTAMP WHERE player_id = ?`, chips, playerID)
	if err != nil {
		return fmt.Errorf("store: update wallet %q: %w", playerID, err)
	}
	return nil
}

func (s *SQLite) ListPlayerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM players`)
	if err != nil {
		return nil, fmt.Errorf("store: list player ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: list player ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) CreateHand(ctx context.Context, tableID string, smallBlind, bigBlind int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO hands (table_id, small_blind, big_blind) VALUES (?, ?, ?)
	`, tableID, smallBlind, bigBlind)
	if err != nil {
		return 0, fmt.Errorf("store: create hand for table %q: %w", tableID, err)
	}
	return res.LastInsertId()
}

func (s *SQLite) AddHandPlayer(ctx context.Context, handID int64, hp HandPlayer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hand_players (hand_id, player_id, seat_no, starting_stack, position_name)
		VALUES (?, ?, ?, ?, ?)
	`, handID, hp.PlayerID, hp.SeatNo, hp.StartingStack, hp.PositionName)
	if err != nil {
		return fmt.Errorf("store: add hand player %q to hand %d: %w", hp.PlayerID, handID, err)
	}
	return nil
}

func (s *SQLite) RecordHoleCards(ctx context.Context, handID int64, playerID string, holeCards []string) error {
	raw, err := json.Marshal(holeCards)
	if err != nil {
		return fmt.Errorf("store: marshal hole cards for %q: %w", playerID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE hand_players SET hole_cards = ? WHERE hand_id = ? AND player_id = ?
	`, string(raw), handID, playerID)
	if err != nil {
		return fmt.Errorf("store: record hole cards for %q in hand %d: %w", playerID, handID, err)
	}
	return nil
}

func (s *SQLite) AddHandAction(ctx context.Context, handID int64, a Action) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hand_actions (hand_id, player_id, street, action_num, action_type, amount, pot_before)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, handID, a.PlayerID, a.Street, a.ActionNum, a.ActionType, a.Amount, a.PotBefore)
	if err != nil {
		return fmt.Errorf("store: add hand action #%d in hand %d: %w", a.ActionNum, handID, err)
	}
	return nil
}

func (s *SQLite) FinishHand(ctx context.Context, handID int64, tableID string, boardCards []string, totalPot int64, results []PlayerResult, stats map[string]HandStats, endedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: finish hand %d begin: %w", handID, err)
	}
	defer tx.Rollback()

	boardJSON, err := json.Marshal(boardCards)
	if err != nil {
		return fmt.Errorf("store: marshal board cards for hand %d: %w", handID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE hands SET ended_at = ?, total_pot = ?, board_cards = ? WHERE id = ?
	`, endedAt, totalPot, string(boardJSON), handID); err != nil {
		return fmt.Errorf("store: finish hand %d: %w", handID, err)
	}

	statDate := endedAt.Format("2006-01-02")
	for _, r := range results {
		winner := 0
		if r.IsWinner {
			winner = 1
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE hand_players SET ending_stack = ?, is_winner = ? WHERE hand_id = ? AND player_id = ?
		`, r.EndingStack, winner, handID, r.PlayerID); err != nil {
			return fmt.Errorf("store: finish hand player %q: %w", r.PlayerID, err)
		}

		hs := stats[r.PlayerID]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO player_daily_stats (stat_date, player_id, hands_played, net_chips)
			VALUES (?, ?, 1, ?)
			ON CONFLICT(stat_date, player_id) DO UPDATE SET
				hands_played = hands_played + 1,
				net_chips = net_chips + excluded.net_chips
		`, statDate, r.PlayerID, hs.NetChips); err != nil {
			return fmt.Errorf("store: update daily stats for %q: %w", r.PlayerID, err)
		}

		netBB := 0.0
		if hs.BigBlind > 0 {
			netBB = float64(hs.NetChips) / float64(hs.BigBlind)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO player_lifetime_stats (
				player_id, hands_played, net_chips, net_bb,
				vpip_hands, pfr_hands, threebet_hands, agg_bets_raises, agg_calls,
				wtsd_hands, wsd_hands, updated_at
			) VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(player_id) DO UPDATE SET
				hands_played = hands_played + 1,
				net_chips = net_chips + excluded.net_chips,
				net_bb = net_bb + excluded.net_bb,
				vpip_hands = vpip_hands + excluded.vpip_hands,
				pfr_hands = pfr_hands + excluded.pfr_hands,
				threebet_hands = threebet_hands + excluded.threebet_hands,
				agg_bets_raises = agg_bets_raises + excluded.agg_bets_raises,
				agg_calls = agg_calls + excluded.agg_calls,
				wtsd_hands = wtsd_hands + excluded.wtsd_hands,
				wsd_hands = wsd_hands + excluded.wsd_hands,
				updated_at = CURRENT_TIMESTAMP
		`, r.PlayerID, hs.NetChips, netBB,
			boolInt(hs.VPIP), boolInt(hs.PFR), boolInt(hs.ThreeBet),
			hs.AggBets, hs.AggCalls, boolInt(hs.WentToShowdown), boolInt(hs.WonShowdown)); err != nil {
			return fmt.Errorf("store: update lifetime stats for %q: %w", r.PlayerID, err)
		}
	}

	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
