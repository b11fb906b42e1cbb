package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

func replaceSnapshots(tx *sqlx.Tx, portfolioID int64, snaps []portfolio.Snapshot) error {
	if _, err := tx.Exec(`DELETE FROM portfolio_snapshots WHERE portfolio_id = ?`, portfolioID); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	for _, s := range snaps {
		if _, err := tx.Exec(`
			INSERT INTO portfolio_snapshots (portfolio_id, day, total_value, total_cost, cash_balance, twr)
			VALUES (?, ?, ?, ?, ?, ?)`,
			portfolioID, s.Date.String(), s.TotalValue, s.TotalCost, s.CashBalance, s.TWR); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", s.Date, err)
		}
	}
	return nil
}

// Snapshots returns a portfolio's daily series in date order. The zero
// date means an unbounded end of range.
func (s *Store) Snapshots(ctx context.Context, portfolioID int64, from, to date.Date) ([]portfolio.Snapshot, error) {
	query := `
		SELECT day, total_value, total_cost, cash_balance, twr
		FROM portfolio_snapshots WHERE portfolio_id = ?`
	args := []any{portfolioID}
	if !from.IsZero() {
		query += ` AND day >= ?`
		args = append(args, from.String())
	}
	if !to.IsZero() {
		query += ` AND day <= ?`
		args = append(args, to.String())
	}
	query += ` ORDER BY day`

	var rows []struct {
		Day         string  `db:"day"`
		TotalValue  float64 `db:"total_value"`
		TotalCost   float64 `db:"total_cost"`
		CashBalance float64 `db:"cash_balance"`
		TWR         float64 `db:"twr"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	out := make([]portfolio.Snapshot, 0, len(rows))
	for _, r := range rows {
		d, err := date.Parse(r.Day)
		if err != nil {
			return nil, fmt.Errorf("snapshot day %q: %w", r.Day, err)
		}
		out = append(out, portfolio.Snapshot{
			Date:        d,
			TotalValue:  r.TotalValue,
			TotalCost:   r.TotalCost,
			CashBalance: r.CashBalance,
			TWR:         r.TWR,
		})
	}
	return out, nil
}
