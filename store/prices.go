package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

// UpsertPrices writes daily closes, replacing any existing close for
// the same symbol and day. Feeds occasionally restate recent closes.
func (s *Store) UpsertPrices(ctx context.Context, symbol string, points []portfolio.PricePoint) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range points {
			if _, err := tx.Exec(`
				INSERT INTO historical_prices (symbol, day, close) VALUES (?, ?, ?)
				ON CONFLICT (symbol, day) DO UPDATE SET close = excluded.close`,
				symbol, p.On.String(), p.Close); err != nil {
				return fmt.Errorf("upsert price %s %s: %w", symbol, p.On, err)
			}
		}
		return nil
	})
}

// PriceRange returns the earliest and latest cached days for a symbol.
func (s *Store) PriceRange(ctx context.Context, symbol string) (min, max date.Date, ok bool, err error) {
	var row struct {
		Min sql.NullString `db:"min_day"`
		Max sql.NullString `db:"max_day"`
	}
	if err = s.db.GetContext(ctx, &row,
		`SELECT MIN(day) AS min_day, MAX(day) AS max_day FROM historical_prices WHERE symbol = ?`,
		symbol); err != nil {
		return date.Date{}, date.Date{}, false, fmt.Errorf("price range %s: %w", symbol, err)
	}
	if !row.Min.Valid || !row.Max.Valid {
		return date.Date{}, date.Date{}, false, nil
	}
	if min, err = date.Parse(row.Min.String); err != nil {
		return date.Date{}, date.Date{}, false, err
	}
	if max, err = date.Parse(row.Max.String); err != nil {
		return date.Date{}, date.Date{}, false, err
	}
	return min, max, true, nil
}

// LoadPrices reads every cached close for the symbols into a price set.
func (s *Store) LoadPrices(ctx context.Context, symbols []string) (*portfolio.PriceSet, error) {
	set := portfolio.NewPriceSet()
	for _, sym := range symbols {
		var rows []struct {
			Day   string  `db:"day"`
			Close float64 `db:"close"`
		}
		if err := s.db.SelectContext(ctx, &rows,
			`SELECT day, close FROM historical_prices WHERE symbol = ? ORDER BY day`, sym); err != nil {
			return nil, fmt.Errorf("load prices %s: %w", sym, err)
		}
		for _, r := range rows {
			d, err := date.Parse(r.Day)
			if err != nil {
				return nil, fmt.Errorf("price day %s %q: %w", sym, r.Day, err)
			}
			set.Add(sym, d, r.Close)
		}
	}
	return set, nil
}

// Quote is a live intraday price with its fetch time.
type Quote struct {
	Symbol    string
	Price     float64
	FetchedAt time.Time
}

// UpsertQuote replaces the live quote for a symbol.
func (s *Store) UpsertQuote(ctx context.Context, q Quote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (symbol, price, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET price = excluded.price, fetched_at = excluded.fetched_at`,
		q.Symbol, q.Price, q.FetchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert quote %s: %w", q.Symbol, err)
	}
	return nil
}

// LatestQuote returns the stored live quote for a symbol, if any.
func (s *Store) LatestQuote(ctx context.Context, symbol string) (Quote, bool, error) {
	var row struct {
		Symbol    string  `db:"symbol"`
		Price     float64 `db:"price"`
		FetchedAt string  `db:"fetched_at"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT symbol, price, fetched_at FROM quotes WHERE symbol = ?`, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, fmt.Errorf("quote %s: %w", symbol, err)
	}
	at, err := time.Parse(time.RFC3339, row.FetchedAt)
	if err != nil {
		return Quote{}, false, fmt.Errorf("quote %s: fetched_at: %w", symbol, err)
	}
	return Quote{Symbol: row.Symbol, Price: row.Price, FetchedAt: at}, true, nil
}
