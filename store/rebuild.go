package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

// PriceFeed fetches daily closes from an external source. The store
// only ever asks for ranges the cache cannot answer.
type PriceFeed interface {
	DailyCloses(ctx context.Context, symbol string, from, to date.Date) ([]portfolio.PricePoint, error)
}

// RebuildLots wipes and replays one account's lot ledger from its full
// transaction log. Concurrent rebuilds of the same account serialize;
// different accounts proceed independently.
func (s *Store) RebuildLots(ctx context.Context, accountID int64) error {
	l := s.rebuildMu.lock(fmt.Sprintf("account:%d", accountID))
	defer l.Unlock()

	txs, err := s.AccountTransactions(ctx, accountID)
	if err != nil {
		return err
	}
	account, err := s.accountName(ctx, accountID)
	if err != nil {
		return err
	}

	book := portfolio.NewLotBook(account, s.log)
	book.Rebuild(txs)

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		return replaceLots(tx, accountID, book)
	})
	if err != nil {
		return fmt.Errorf("rebuild lots for account %d: %w", accountID, err)
	}
	s.log.Info("rebuilt lots",
		zap.Int64("account_id", accountID),
		zap.Int("transactions", len(txs)),
		zap.Int("lots", len(book.Lots())),
		zap.Int("disposals", len(book.Disposals())))
	return nil
}

// BuildSnapshots rebuilds one portfolio's daily series through 'end'
// (zero means today). Regular portfolios replay their merged
// transaction log priced from the cache; aggregates sum their members'
// stored series, so members must be built first.
func (s *Store) BuildSnapshots(ctx context.Context, portfolioID int64, cashSymbol string, end date.Date) error {
	l := s.rebuildMu.lock(fmt.Sprintf("portfolio:%d", portfolioID))
	defer l.Unlock()

	var isAggregate bool
	if err := s.db.GetContext(ctx, &isAggregate,
		`SELECT is_aggregate FROM portfolios WHERE id = ?`, portfolioID); err != nil {
		return fmt.Errorf("portfolio %d: %w", portfolioID, err)
	}

	var snaps []portfolio.Snapshot
	if isAggregate {
		memberIDs, err := s.AggregateMemberIDs(ctx, portfolioID)
		if err != nil {
			return err
		}
		members := make([][]portfolio.Snapshot, 0, len(memberIDs))
		for _, id := range memberIDs {
			series, err := s.Snapshots(ctx, id, date.Date{}, end)
			if err != nil {
				return err
			}
			members = append(members, series)
		}
		snaps = portfolio.AggregateSnapshots(members...)
	} else {
		txs, err := s.PortfolioTransactions(ctx, portfolioID)
		if err != nil {
			return err
		}
		symbols := make(map[string]struct{})
		for _, tx := range txs {
			if tx.Symbol != "" {
				symbols[tx.Symbol] = struct{}{}
			}
		}
		list := make([]string, 0, len(symbols))
		for sym := range symbols {
			list = append(list, sym)
		}
		prices, err := s.LoadPrices(ctx, list)
		if err != nil {
			return err
		}
		snaps = portfolio.BuildDailySnapshots(txs, prices, cashSymbol, end, s.log)
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return replaceSnapshots(tx, portfolioID, snaps)
	})
	if err != nil {
		return fmt.Errorf("rebuild snapshots for portfolio %d: %w", portfolioID, err)
	}
	s.log.Info("rebuilt snapshots",
		zap.Int64("portfolio_id", portfolioID),
		zap.Bool("aggregate", isAggregate),
		zap.Int("days", len(snaps)))
	return nil
}

// EnsurePrices fills the price cache for the symbols over [start, end],
// calling the feed only for ranges the cache and this session's fetch
// log cannot answer.
func (s *Store) EnsurePrices(ctx context.Context, feed PriceFeed, cache *portfolio.FetchCache, symbols []string, start, end date.Date) error {
	if cache == nil {
		cache = portfolio.NewFetchCache()
	}
	for _, sym := range symbols {
		min, max, have, err := s.PriceRange(ctx, sym)
		if err != nil {
			return err
		}
		if !cache.NeedsFetch(sym, min, max, have, start, end) {
			continue
		}
		points, err := feed.DailyCloses(ctx, sym, start, end)
		cache.MarkAttempted(sym, end)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", sym, err)
		}
		if len(points) == 0 {
			s.log.Debug("feed returned no closes", zap.String("symbol", sym),
				zap.Stringer("from", start), zap.Stringer("to", end))
			continue
		}
		if err := s.UpsertPrices(ctx, sym, points); err != nil {
			return err
		}
	}
	return nil
}
