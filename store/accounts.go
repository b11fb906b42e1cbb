package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a named account or portfolio does not
// exist.
var ErrNotFound = errors.New("store: not found")

// Account is one brokerage account; transactions and lots belong to
// accounts, portfolios group them for reporting.
type Account struct {
	ID     int64  `db:"id"`
	Name   string `db:"name"`
	Broker string `db:"broker"`
}

// Portfolio is a named reporting view over one or more accounts. An
// aggregate portfolio has no accounts of its own; its snapshots are
// derived from its member portfolios.
type Portfolio struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	IsAggregate bool   `db:"is_aggregate"`
}

// CreateAccount inserts a new account and returns it. The name must be
// unique.
func (s *Store) CreateAccount(ctx context.Context, name, broker string) (Account, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, broker) VALUES (?, ?)`, name, broker)
	if err != nil {
		return Account{}, fmt.Errorf("create account %q: %w", name, err)
	}
	id, _ := res.LastInsertId()
	return Account{ID: id, Name: name, Broker: broker}, nil
}

// AccountByName looks an account up by its unique name.
func (s *Store) AccountByName(ctx context.Context, name string) (Account, error) {
	var a Account
	err := s.db.GetContext(ctx, &a,
		`SELECT id, name, broker FROM accounts WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Account{}, fmt.Errorf("account %q: %w", name, err)
	}
	return a, nil
}

// Accounts lists all accounts by name.
func (s *Store) Accounts(ctx context.Context) ([]Account, error) {
	var out []Account
	if err := s.db.SelectContext(ctx, &out,
		`SELECT id, name, broker FROM accounts ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// CreatePortfolio inserts a portfolio. Aggregate portfolios group other
// portfolios via AddAggregateMember; regular ones group accounts via
// AddPortfolioAccount.
func (s *Store) CreatePortfolio(ctx context.Context, name string, aggregate bool) (Portfolio, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO portfolios (name, is_aggregate) VALUES (?, ?)`, name, aggregate)
	if err != nil {
		return Portfolio{}, fmt.Errorf("create portfolio %q: %w", name, err)
	}
	id, _ := res.LastInsertId()
	return Portfolio{ID: id, Name: name, IsAggregate: aggregate}, nil
}

// PortfolioByName looks a portfolio up by its unique name.
func (s *Store) PortfolioByName(ctx context.Context, name string) (Portfolio, error) {
	var p Portfolio
	err := s.db.GetContext(ctx, &p,
		`SELECT id, name, is_aggregate FROM portfolios WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, fmt.Errorf("portfolio %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Portfolio{}, fmt.Errorf("portfolio %q: %w", name, err)
	}
	return p, nil
}

// Portfolios lists all portfolios by name.
func (s *Store) Portfolios(ctx context.Context) ([]Portfolio, error) {
	var out []Portfolio
	if err := s.db.SelectContext(ctx, &out,
		`SELECT id, name, is_aggregate FROM portfolios ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	return out, nil
}

// AddPortfolioAccount links an account into a regular portfolio.
func (s *Store) AddPortfolioAccount(ctx context.Context, portfolioID, accountID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO portfolio_accounts (portfolio_id, account_id) VALUES (?, ?)`,
		portfolioID, accountID)
	if err != nil {
		return fmt.Errorf("link account %d to portfolio %d: %w", accountID, portfolioID, err)
	}
	return nil
}

// AddAggregateMember links a member portfolio into an aggregate.
func (s *Store) AddAggregateMember(ctx context.Context, aggregateID, memberID int64) error {
	if aggregateID == memberID {
		return fmt.Errorf("portfolio %d cannot aggregate itself", aggregateID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO aggregate_members (aggregate_id, member_id) VALUES (?, ?)`,
		aggregateID, memberID)
	if err != nil {
		return fmt.Errorf("link member %d to aggregate %d: %w", memberID, aggregateID, err)
	}
	return nil
}

// PortfolioAccountIDs returns the account ids belonging to a regular
// portfolio.
func (s *Store) PortfolioAccountIDs(ctx context.Context, portfolioID int64) ([]int64, error) {
	var out []int64
	if err := s.db.SelectContext(ctx, &out,
		`SELECT account_id FROM portfolio_accounts WHERE portfolio_id = ? ORDER BY account_id`,
		portfolioID); err != nil {
		return nil, fmt.Errorf("accounts of portfolio %d: %w", portfolioID, err)
	}
	return out, nil
}

// AggregateMemberIDs returns the member portfolio ids of an aggregate.
func (s *Store) AggregateMemberIDs(ctx context.Context, aggregateID int64) ([]int64, error) {
	var out []int64
	if err := s.db.SelectContext(ctx, &out,
		`SELECT member_id FROM aggregate_members WHERE aggregate_id = ? ORDER BY member_id`,
		aggregateID); err != nil {
		return nil, fmt.Errorf("members of aggregate %d: %w", aggregateID, err)
	}
	return out, nil
}
