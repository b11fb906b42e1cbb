package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/autobasher/portfolio/date"
)

type rebuildCmd struct {
	account   string
	portfolio string
	end       string
}

func (*rebuildCmd) Name() string     { return "rebuild" }
func (*rebuildCmd) Synopsis() string { return "rebuild tax lots and daily snapshots from the log" }
func (*rebuildCmd) Usage() string {
	return `mdash rebuild [-a <account>] [-p <portfolio>] [-end <date>]

  Replays transaction logs into tax lots and daily snapshot series.
  Without flags, every account and every portfolio is rebuilt; regular
  portfolios run before aggregates so aggregates sum fresh data.
`
}

func (c *rebuildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "rebuild only this account's lots")
	f.StringVar(&c.portfolio, "p", "", "rebuild only this portfolio's snapshots")
	f.StringVar(&c.end, "end", "", "last snapshot date (default today)")
}

func (c *rebuildCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	var end date.Date
	if c.end != "" {
		if end, err = date.Parse(c.end); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}

	if err := c.run(ctx, a, end); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *rebuildCmd) run(ctx context.Context, a *app, end date.Date) error {
	if c.account != "" {
		acct, err := a.store.AccountByName(ctx, c.account)
		if err != nil {
			return err
		}
		return a.store.RebuildLots(ctx, acct.ID)
	}
	if c.portfolio != "" {
		p, err := a.store.PortfolioByName(ctx, c.portfolio)
		if err != nil {
			return err
		}
		return a.store.BuildSnapshots(ctx, p.ID, a.cfg.Ledger.CashSymbol, end)
	}

	accounts, err := a.store.Accounts(ctx)
	if err != nil {
		return err
	}
	for _, acct := range accounts {
		if err := a.store.RebuildLots(ctx, acct.ID); err != nil {
			return err
		}
	}

	portfolios, err := a.store.Portfolios(ctx)
	if err != nil {
		return err
	}
	for _, aggregate := range []bool{false, true} {
		for _, p := range portfolios {
			if p.IsAggregate != aggregate {
				continue
			}
			if err := a.store.BuildSnapshots(ctx, p.ID, a.cfg.Ledger.CashSymbol, end); err != nil {
				return err
			}
		}
	}
	fmt.Printf("Rebuilt %d accounts and %d portfolios\n", len(accounts), len(portfolios))
	return nil
}
