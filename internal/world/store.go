package world

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"otmarket/internal/domain"

	"github.com/jmoiron/sqlx"
)

// PlayerStore persists the player fields the market touches: bank balance
// and inbox contents.
type PlayerStore struct {
	conn *sqlx.DB
}

// NewPlayerStore wraps an open SQLite connection and creates the player tables.
func NewPlayerStore(db *sql.DB) (*PlayerStore, error) {
	// The driver name only selects the bind style; "sqlite3" maps to '?'.
	s := &PlayerStore{conn: sqlx.NewDb(db, "sqlite3")}
	if err := s.migrate(); err != nil {
		return nil, domain.NewFatalStoreError("migrate_players", err)
	}
	return s, nil
}

func (s *PlayerStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		bank_balance INTEGER NOT NULL DEFAULT 0,
		inbox_capacity INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS player_inbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		player_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		count INTEGER NOT NULL,
		charges INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_player_inbox_player ON player_inbox(player_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// CreatePlayer inserts a new player record.
func (s *PlayerStore) CreatePlayer(ctx context.Context, p *domain.Player) error {
	_, err := s.conn.NamedExecContext(ctx,
		`INSERT INTO players (id, name, bank_balance, inbox_capacity)
		 VALUES (:id, :name, :bank_balance, :inbox_capacity)`, p)
	if err != nil {
		return fmt.Errorf("insert player %d: %w", p.ID, err)
	}
	return nil
}

// LoadPlayer reads a player record and its inbox.
func (s *PlayerStore) LoadPlayer(ctx context.Context, playerID uint32) (*domain.Player, error) {
	var p domain.Player
	err := s.conn.GetContext(ctx, &p,
		"SELECT id, name, bank_balance, inbox_capacity FROM players WHERE id = ?", playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("load_player", err)
	}

	if err := s.conn.SelectContext(ctx, &p.Inbox,
		"SELECT item_id, count, charges FROM player_inbox WHERE player_id = ? ORDER BY id", playerID); err != nil {
		return nil, domain.NewStoreError("load_inbox", err)
	}
	return &p, nil
}

// SavePlayer writes the bank balance and replaces the stored inbox.
func (s *PlayerStore) SavePlayer(ctx context.Context, p *domain.Player) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("save_player", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE players SET bank_balance = ? WHERE id = ?", p.BankBalance, p.ID)
	if err != nil {
		return domain.NewStoreError("save_player", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrPlayerNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM player_inbox WHERE player_id = ?", p.ID); err != nil {
		return domain.NewStoreError("save_inbox", err)
	}

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO player_inbox (player_id, item_id, count, charges) VALUES (?, ?, ?, ?)")
	if err != nil {
		return domain.NewStoreError("save_inbox", err)
	}
	defer stmt.Close()

	for _, item := range p.Inbox {
		if _, err := stmt.ExecContext(ctx, p.ID, item.TypeID, item.Count, item.Charges); err != nil {
			return domain.NewStoreError("save_inbox", fmt.Errorf("insert item %d: %w", item.TypeID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("save_player", err)
	}
	return nil
}

// IncreaseBankBalance credits money without loading the player.
func (s *PlayerStore) IncreaseBankBalance(ctx context.Context, playerID uint32, amount uint64) error {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE players SET bank_balance = bank_balance + ? WHERE id = ?", amount, playerID)
	if err != nil {
		return domain.NewStoreError("increase_bank_balance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}
