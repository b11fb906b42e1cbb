// Package store persists accounts, portfolios, transactions, tax lots,
// prices, and daily snapshots in a single SQLite file, and orchestrates
// the full rebuilds that keep the derived tables consistent with the
// transaction log.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL UNIQUE,
    broker      TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS portfolios (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL UNIQUE,
    is_aggregate INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS portfolio_accounts (
    portfolio_id INTEGER NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
    account_id   INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    PRIMARY KEY (portfolio_id, account_id)
);

CREATE TABLE IF NOT EXISTS aggregate_members (
    aggregate_id INTEGER NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
    member_id    INTEGER NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
    PRIMARY KEY (aggregate_id, member_id)
);

CREATE TABLE IF NOT EXISTS transactions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id  INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    trade_date  TEXT NOT NULL,
    settlement  TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL,
    symbol      TEXT NOT NULL DEFAULT '',
    shares      TEXT NOT NULL DEFAULT '0',
    price       TEXT NOT NULL DEFAULT '0',
    amount      TEXT NOT NULL DEFAULT '0',
    fees        TEXT NOT NULL DEFAULT '0',
    split_ratio TEXT NOT NULL DEFAULT '0',
    description TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transactions_account_date
    ON transactions(account_id, trade_date, id);

CREATE TABLE IF NOT EXISTS lots (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id       INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    symbol           TEXT NOT NULL,
    acquired_date    TEXT NOT NULL,
    shares_acquired  TEXT NOT NULL,
    shares_remaining TEXT NOT NULL,
    cost_per_share   TEXT NOT NULL,
    total_cost       TEXT NOT NULL,
    source_tx_id     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lots_account_symbol
    ON lots(account_id, symbol);

CREATE TABLE IF NOT EXISTS lot_disposals (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    sell_tx_id INTEGER NOT NULL,
    lot_id     INTEGER NOT NULL,
    symbol     TEXT NOT NULL,
    shares     TEXT NOT NULL,
    cost_basis TEXT NOT NULL,
    proceeds   TEXT NOT NULL,
    gain       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS historical_prices (
    symbol TEXT NOT NULL,
    day    TEXT NOT NULL,
    close  REAL NOT NULL,
    PRIMARY KEY (symbol, day)
);

CREATE TABLE IF NOT EXISTS quotes (
    symbol     TEXT PRIMARY KEY,
    price      REAL NOT NULL,
    fetched_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
    portfolio_id INTEGER NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
    day          TEXT NOT NULL,
    total_value  REAL NOT NULL,
    total_cost   REAL NOT NULL,
    cash_balance REAL NOT NULL,
    twr          REAL NOT NULL,
    PRIMARY KEY (portfolio_id, day)
);
`

// Store is the SQLite-backed ledger. All methods are safe for
// concurrent use; rebuilds additionally serialize per account or per
// portfolio so two rebuilds of the same entity cannot interleave.
type Store struct {
	db  *sqlx.DB
	log *zap.Logger

	rebuildMu syncMap // per-entity rebuild locks
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY between the rebuild transactions.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for ad-hoc queries in tools.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// syncMap hands out one mutex per key.
type syncMap struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (m *syncMap) lock(key string) *sync.Mutex {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*sync.Mutex)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l
}
