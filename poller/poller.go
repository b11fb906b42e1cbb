// Package poller runs the background refresh jobs: periodic live quote
// updates during market hours and a nightly backfill of daily closes
// followed by a snapshot rebuild.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
	"github.com/autobasher/portfolio/store"
)

// QuoteFeed fetches a live intraday price.
type QuoteFeed interface {
	Live(ctx context.Context, symbol string) (float64, error)
}

// Config sets the schedules and the symbols to track.
type Config struct {
	QuoteCron    string // e.g. "*/5 13-21 * * 1-5"
	BackfillCron string // e.g. "30 2 * * *"
	QuoteTimeout time.Duration
	CashSymbol   string
	Symbols      func(ctx context.Context) ([]string, error)
}

// Poller schedules the refresh jobs against one store.
type Poller struct {
	store   *store.Store
	prices  store.PriceFeed
	quotes  QuoteFeed
	cfg     Config
	cron    *cron.Cron
	log     *zap.Logger
	running bool
}

// New creates a poller. Jobs do not run until Start.
func New(s *store.Store, prices store.PriceFeed, quotes QuoteFeed, cfg Config, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = time.Minute
	}
	return &Poller{
		store:  s,
		prices: prices,
		quotes: quotes,
		cfg:    cfg,
		cron:   cron.New(),
		log:    log,
	}
}

// Start registers the cron entries and launches the scheduler.
func (p *Poller) Start(ctx context.Context) error {
	if p.running {
		return fmt.Errorf("poller already running")
	}

	if p.cfg.QuoteCron != "" {
		if _, err := p.cron.AddFunc(p.cfg.QuoteCron, func() {
			jobCtx, cancel := context.WithTimeout(ctx, p.cfg.QuoteTimeout)
			defer cancel()
			if err := p.RefreshQuotes(jobCtx); err != nil {
				p.log.Error("quote refresh failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule quote refresh: %w", err)
		}
	}

	if p.cfg.BackfillCron != "" {
		if _, err := p.cron.AddFunc(p.cfg.BackfillCron, func() {
			if err := p.Backfill(ctx); err != nil {
				p.log.Error("backfill failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule backfill: %w", err)
		}
	}

	p.cron.Start()
	p.running = true
	p.log.Info("poller started",
		zap.String("quote_cron", p.cfg.QuoteCron),
		zap.String("backfill_cron", p.cfg.BackfillCron))
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (p *Poller) Stop() {
	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.log.Info("poller stopped")
}

// RefreshQuotes fetches a live quote for every tracked symbol and
// stores it. One failing symbol does not stop the others.
func (p *Poller) RefreshQuotes(ctx context.Context) error {
	symbols, err := p.cfg.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}
	var failed int
	for _, sym := range symbols {
		price, err := p.quotes.Live(ctx, sym)
		if err != nil {
			failed++
			p.log.Warn("live quote failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		if err := p.store.UpsertQuote(ctx, store.Quote{
			Symbol:    sym,
			Price:     price,
			FetchedAt: time.Now(),
		}); err != nil {
			return err
		}
	}
	p.log.Debug("quotes refreshed", zap.Int("symbols", len(symbols)), zap.Int("failed", failed))
	if failed == len(symbols) && failed > 0 {
		return fmt.Errorf("all %d quote fetches failed", failed)
	}
	return nil
}

// Backfill tops the price cache up through today and rebuilds every
// portfolio's snapshot series, regular portfolios before aggregates so
// aggregates sum fresh member data.
func (p *Poller) Backfill(ctx context.Context) error {
	symbols, err := p.cfg.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}

	today := date.Today()
	cache := portfolio.NewFetchCache()
	// A year back covers any splits the feed may have restated.
	if err := p.store.EnsurePrices(ctx, p.prices, cache, symbols, today.Add(-365), today); err != nil {
		return err
	}

	portfolios, err := p.store.Portfolios(ctx)
	if err != nil {
		return err
	}
	for _, aggregate := range []bool{false, true} {
		for _, pf := range portfolios {
			if pf.IsAggregate != aggregate {
				continue
			}
			if err := p.store.BuildSnapshots(ctx, pf.ID, p.cfg.CashSymbol, today); err != nil {
				return err
			}
		}
	}
	return nil
}
