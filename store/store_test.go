package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func d(t *testing.T, s string) date.Date {
	t.Helper()
	return date.MustParse(s)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAccountAndPortfolioCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	acct, err := s.CreateAccount(ctx, "ira", "vanguard")
	require.NoError(t, err)
	require.NotZero(t, acct.ID)

	got, err := s.AccountByName(ctx, "ira")
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	_, err = s.AccountByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := s.CreatePortfolio(ctx, "retirement", false)
	require.NoError(t, err)
	require.NoError(t, s.AddPortfolioAccount(ctx, p.ID, acct.ID))

	ids, err := s.PortfolioAccountIDs(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{acct.ID}, ids)

	agg, err := s.CreatePortfolio(ctx, "everything", true)
	require.NoError(t, err)
	assert.True(t, agg.IsAggregate)
	require.NoError(t, s.AddAggregateMember(ctx, agg.ID, p.ID))
	assert.Error(t, s.AddAggregateMember(ctx, agg.ID, agg.ID))
}

func TestTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	acct, err := s.CreateAccount(ctx, "ira", "")
	require.NoError(t, err)

	in := portfolio.Transaction{
		TradeDate:   d(t, "2024-01-02"),
		Settlement:  d(t, "2024-01-04"),
		Type:        portfolio.TxBuy,
		Symbol:      "AAPL",
		Shares:      dec("10.5"),
		Price:       dec("100.25"),
		Amount:      dec("-1052.63"),
		Fees:        dec("0.01"),
		Description: "initial position",
		Source:      "statement-2024-01.csv",
	}
	id, err := s.InsertTransaction(ctx, acct.ID, in)
	require.NoError(t, err)
	require.NotZero(t, id)

	txs, err := s.AccountTransactions(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	got := txs[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "ira", got.Account)
	assert.Equal(t, portfolio.TxBuy, got.Type)
	assert.True(t, got.Shares.Equal(in.Shares), "shares %s", got.Shares)
	assert.True(t, got.Amount.Equal(in.Amount), "amount %s", got.Amount)
	assert.Equal(t, "2024-01-04", got.Settlement.String())
}

func TestRebuildLots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	acct, err := s.CreateAccount(ctx, "ira", "")
	require.NoError(t, err)

	for _, tx := range []portfolio.Transaction{
		{TradeDate: d(t, "2024-01-02"), Type: portfolio.TxBuy, Symbol: "AAPL", Shares: dec("10"), Amount: dec("-1000")},
		{TradeDate: d(t, "2024-02-01"), Type: portfolio.TxBuy, Symbol: "AAPL", Shares: dec("5"), Amount: dec("-600")},
		{TradeDate: d(t, "2024-03-01"), Type: portfolio.TxSell, Symbol: "AAPL", Shares: dec("12"), Amount: dec("1560")},
	} {
		_, err := s.InsertTransaction(ctx, acct.ID, tx)
		require.NoError(t, err)
	}

	require.NoError(t, s.RebuildLots(ctx, acct.ID))

	open, err := s.OpenLots(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].SharesRemaining.Equal(dec("3")), "remaining %s", open[0].SharesRemaining)
	assert.True(t, open[0].CostPerShare.Equal(dec("120")), "basis %s", open[0].CostPerShare)

	gains, err := s.RealizedGains(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, gains, 2)
	total := gains[0].Add(gains[1])
	assert.True(t, total.Equal(dec("320")), "total gain %s", total)

	// A second rebuild replaces, never accumulates.
	require.NoError(t, s.RebuildLots(ctx, acct.ID))
	open, err = s.OpenLots(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestRebuildLotsDisposalsReferenceOwnLots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mkAccount := func(name string) int64 {
		acct, err := s.CreateAccount(ctx, name, "")
		require.NoError(t, err)
		for _, tx := range []portfolio.Transaction{
			{TradeDate: d(t, "2024-01-02"), Type: portfolio.TxBuy, Symbol: "AAPL", Shares: dec("10"), Amount: dec("-1000")},
			{TradeDate: d(t, "2024-02-01"), Type: portfolio.TxSell, Symbol: "AAPL", Shares: dec("4"), Amount: dec("480")},
		} {
			_, err := s.InsertTransaction(ctx, acct.ID, tx)
			require.NoError(t, err)
		}
		require.NoError(t, s.RebuildLots(ctx, acct.ID))
		return acct.ID
	}

	first := mkAccount("ira")
	second := mkAccount("taxable")

	// Rebuilding again hands out fresh lot row ids; the rewritten
	// disposals must follow them.
	require.NoError(t, s.RebuildLots(ctx, second))

	var orphans int
	require.NoError(t, s.db.GetContext(ctx, &orphans, `
		SELECT COUNT(*) FROM lot_disposals ld
		LEFT JOIN lots l ON l.id = ld.lot_id AND l.account_id = ld.account_id
		WHERE l.id IS NULL`))
	assert.Zero(t, orphans, "disposals referencing missing or foreign lots")

	for _, id := range []int64{first, second} {
		open, err := s.OpenLots(ctx, id)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.True(t, open[0].SharesRemaining.Equal(dec("6")), "remaining %s", open[0].SharesRemaining)
	}
}

func TestBuildSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	acct, err := s.CreateAccount(ctx, "ira", "")
	require.NoError(t, err)
	p, err := s.CreatePortfolio(ctx, "retirement", false)
	require.NoError(t, err)
	require.NoError(t, s.AddPortfolioAccount(ctx, p.ID, acct.ID))

	for _, tx := range []portfolio.Transaction{
		{TradeDate: d(t, "2024-01-01"), Type: portfolio.TxSweepIn, Amount: dec("1000")},
		{TradeDate: d(t, "2024-01-02"), Type: portfolio.TxSweepOut, Amount: dec("1000")},
		{TradeDate: d(t, "2024-01-02"), Type: portfolio.TxBuy, Symbol: "AAPL", Shares: dec("10"), Amount: dec("-1000")},
	} {
		_, err := s.InsertTransaction(ctx, acct.ID, tx)
		require.NoError(t, err)
	}
	require.NoError(t, s.UpsertPrices(ctx, "AAPL", []portfolio.PricePoint{
		{On: d(t, "2024-01-02"), Close: 100},
		{On: d(t, "2024-01-03"), Close: 110},
	}))

	require.NoError(t, s.BuildSnapshots(ctx, p.ID, "", d(t, "2024-01-03")))

	snaps, err := s.Snapshots(ctx, p.ID, date.Date{}, date.Date{})
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.InDelta(t, 1100, snaps[2].TotalValue, 1e-9)
	assert.InDelta(t, 0.10, snaps[2].TWR, 1e-9)
	assert.InDelta(t, 1000, snaps[2].TotalCost, 1e-9)

	// Range filters.
	tail, err := s.Snapshots(ctx, p.ID, d(t, "2024-01-03"), date.Date{})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "2024-01-03", tail[0].Date.String())
}

func TestBuildAggregateSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mkMember := func(name string, amount string, day string) int64 {
		acct, err := s.CreateAccount(ctx, name+"-acct", "")
		require.NoError(t, err)
		p, err := s.CreatePortfolio(ctx, name, false)
		require.NoError(t, err)
		require.NoError(t, s.AddPortfolioAccount(ctx, p.ID, acct.ID))
		_, err = s.InsertTransaction(ctx, acct.ID, portfolio.Transaction{
			TradeDate: d(t, day), Type: portfolio.TxSweepIn, Amount: dec(amount),
		})
		require.NoError(t, err)
		require.NoError(t, s.BuildSnapshots(ctx, p.ID, "", d(t, "2024-01-03")))
		return p.ID
	}

	a := mkMember("ira", "1000", "2024-01-01")
	b := mkMember("taxable", "500", "2024-01-02")

	agg, err := s.CreatePortfolio(ctx, "everything", true)
	require.NoError(t, err)
	require.NoError(t, s.AddAggregateMember(ctx, agg.ID, a))
	require.NoError(t, s.AddAggregateMember(ctx, agg.ID, b))

	require.NoError(t, s.BuildSnapshots(ctx, agg.ID, "", d(t, "2024-01-03")))

	snaps, err := s.Snapshots(ctx, agg.ID, date.Date{}, date.Date{})
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.InDelta(t, 1000, snaps[0].TotalValue, 1e-9)
	assert.InDelta(t, 1500, snaps[1].TotalValue, 1e-9)
	assert.InDelta(t, 1500, snaps[2].TotalValue, 1e-9)
	// Pure deposits: the combined return stays flat.
	assert.InDelta(t, 0, snaps[2].TWR, 1e-9)
}

type fakeFeed struct {
	calls  int
	points []portfolio.PricePoint
}

func (f *fakeFeed) DailyCloses(ctx context.Context, symbol string, from, to date.Date) ([]portfolio.PricePoint, error) {
	f.calls++
	return f.points, nil
}

func TestEnsurePrices(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	feed := &fakeFeed{points: []portfolio.PricePoint{
		{On: d(t, "2024-01-02"), Close: 100},
		{On: d(t, "2024-01-03"), Close: 101},
	}}
	cache := portfolio.NewFetchCache()

	start, end := d(t, "2024-01-02"), d(t, "2024-01-03")
	require.NoError(t, s.EnsurePrices(ctx, feed, cache, []string{"AAPL"}, start, end))
	assert.Equal(t, 1, feed.calls)

	// Covered range: no second call.
	require.NoError(t, s.EnsurePrices(ctx, feed, cache, []string{"AAPL"}, start, end))
	assert.Equal(t, 1, feed.calls)

	// Extending the range past the cache triggers a fetch.
	require.NoError(t, s.EnsurePrices(ctx, feed, cache, []string{"AAPL"}, start, d(t, "2024-01-05")))
	assert.Equal(t, 2, feed.calls)

	// An empty feed result still raises the high-water mark, so the
	// same weekend range is not re-fetched within the session.
	feed.points = nil
	require.NoError(t, s.EnsurePrices(ctx, feed, cache, []string{"AAPL"}, start, d(t, "2024-01-07")))
	require.NoError(t, s.EnsurePrices(ctx, feed, cache, []string{"AAPL"}, start, d(t, "2024-01-07")))
	assert.Equal(t, 3, feed.calls)
}

func TestQuotes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.LatestQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpsertQuote(ctx, Quote{Symbol: "AAPL", Price: 123.45, FetchedAt: now}))

	q, ok, err := s.LatestQuote(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 123.45, q.Price)
	assert.True(t, q.FetchedAt.Equal(now))

	require.NoError(t, s.UpsertQuote(ctx, Quote{Symbol: "AAPL", Price: 124.00, FetchedAt: now.Add(time.Minute)}))
	q, _, err = s.LatestQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 124.00, q.Price)
}
