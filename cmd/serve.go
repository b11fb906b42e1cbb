package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"github.com/autobasher/portfolio/poller"
)

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the background quote poller and nightly backfill" }
func (*serveCmd) Usage() string {
	return `mdash serve

  Runs until interrupted: refreshes live quotes on the configured
  schedule during market hours, and backfills daily closes and
  snapshots nightly.
`
}

func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	feed, err := a.feed()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := poller.New(a.store, feed, feed, poller.Config{
		QuoteCron:    a.cfg.Poller.QuoteCron,
		BackfillCron: a.cfg.Poller.BackfillCron,
		QuoteTimeout: a.cfg.Poller.QuoteTimeout,
		CashSymbol:   a.cfg.Ledger.CashSymbol,
		Symbols:      a.store.TradedSymbols,
	}, a.log)

	if err := p.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	<-ctx.Done()
	p.Stop()
	return subcommands.ExitSuccess
}
