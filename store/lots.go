package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

type lotRow struct {
	ID              int64  `db:"id"`
	AccountID       int64  `db:"account_id"`
	Symbol          string `db:"symbol"`
	AcquiredDate    string `db:"acquired_date"`
	SharesAcquired  string `db:"shares_acquired"`
	SharesRemaining string `db:"shares_remaining"`
	CostPerShare    string `db:"cost_per_share"`
	TotalCost       string `db:"total_cost"`
	SourceTxID      int64  `db:"source_tx_id"`
}

func (r lotRow) lot(account string) (portfolio.Lot, error) {
	acquired, err := date.Parse(r.AcquiredDate)
	if err != nil {
		return portfolio.Lot{}, fmt.Errorf("lot %d: acquired date: %w", r.ID, err)
	}
	parse := func(field, s string) decimal.Decimal {
		d, perr := decimal.NewFromString(s)
		if perr != nil && err == nil {
			err = fmt.Errorf("lot %d: %s: %w", r.ID, field, perr)
		}
		return d
	}
	l := portfolio.Lot{
		ID:              r.ID,
		Account:         account,
		Symbol:          r.Symbol,
		AcquiredDate:    acquired,
		SharesAcquired:  parse("shares_acquired", r.SharesAcquired),
		SharesRemaining: parse("shares_remaining", r.SharesRemaining),
		CostPerShare:    parse("cost_per_share", r.CostPerShare),
		TotalCost:       parse("total_cost", r.TotalCost),
		SourceTxID:      r.SourceTxID,
	}
	return l, err
}

func replaceLots(tx *sqlx.Tx, accountID int64, book *portfolio.LotBook) error {
	if _, err := tx.Exec(`DELETE FROM lots WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clear lots: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM lot_disposals WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clear disposals: %w", err)
	}
	// The book numbers lots 1..n per replay while the table hands out
	// autoincrement ids, so disposals must be rewritten through the
	// book-id to row-id mapping captured at insert time.
	rowID := make(map[int64]int64, len(book.Lots()))
	for _, l := range book.Lots() {
		res, err := tx.Exec(`
			INSERT INTO lots
				(account_id, symbol, acquired_date, shares_acquired, shares_remaining, cost_per_share, total_cost, source_tx_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			accountID, l.Symbol, l.AcquiredDate.String(),
			l.SharesAcquired.String(), l.SharesRemaining.String(),
			l.CostPerShare.String(), l.TotalCost.String(), l.SourceTxID)
		if err != nil {
			return fmt.Errorf("insert lot: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert lot: %w", err)
		}
		rowID[l.ID] = id
	}
	for _, d := range book.Disposals() {
		lotID, ok := rowID[d.LotID]
		if !ok {
			return fmt.Errorf("disposal for tx %d references unknown lot %d", d.SellTxID, d.LotID)
		}
		if _, err := tx.Exec(`
			INSERT INTO lot_disposals
				(account_id, sell_tx_id, lot_id, symbol, shares, cost_basis, proceeds, gain)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			accountID, d.SellTxID, lotID, d.Symbol,
			d.Shares.String(), d.CostBasis.String(), d.Proceeds.String(), d.Gain.String()); err != nil {
			return fmt.Errorf("insert disposal: %w", err)
		}
	}
	return nil
}

// OpenLots returns an account's open lots, oldest-acquired-first.
func (s *Store) OpenLots(ctx context.Context, accountID int64) ([]portfolio.Lot, error) {
	account, err := s.accountName(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var rows []lotRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, symbol, acquired_date, shares_acquired, shares_remaining,
		       cost_per_share, total_cost, source_tx_id
		FROM lots
		WHERE account_id = ? AND CAST(shares_remaining AS REAL) > 1e-9
		ORDER BY acquired_date, id`, accountID); err != nil {
		return nil, fmt.Errorf("select lots: %w", err)
	}
	out := make([]portfolio.Lot, 0, len(rows))
	for _, r := range rows {
		l, err := r.lot(account)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// RealizedGains returns an account's disposal gains as decimals, in
// replay order.
func (s *Store) RealizedGains(ctx context.Context, accountID int64) ([]decimal.Decimal, error) {
	var raw []string
	if err := s.db.SelectContext(ctx, &raw,
		`SELECT gain FROM lot_disposals WHERE account_id = ? ORDER BY id`, accountID); err != nil {
		return nil, fmt.Errorf("select disposals: %w", err)
	}
	out := make([]decimal.Decimal, 0, len(raw))
	for _, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("disposal gain %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) accountName(ctx context.Context, accountID int64) (string, error) {
	var name string
	if err := s.db.GetContext(ctx, &name,
		`SELECT name FROM accounts WHERE id = ?`, accountID); err != nil {
		return "", fmt.Errorf("account %d: %w", accountID, err)
	}
	return name, nil
}
