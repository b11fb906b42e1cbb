package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
	"github.com/autobasher/portfolio/renderer"
)

type reportCmd struct {
	portfolio string
	lots      bool
	plain     bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "show a portfolio performance report" }
func (*reportCmd) Usage() string {
	return `mdash report -p <portfolio> [-lots] [-plain]

  Renders market value, return and risk statistics, and the current
  allocation. With -lots, also lists each account's open tax lots.
  -plain skips terminal styling.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "portfolio name")
	f.BoolVar(&c.lots, "lots", false, "include open tax lots per account")
	f.BoolVar(&c.plain, "plain", false, "print raw markdown without styling")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolio == "" {
		fmt.Fprintln(os.Stderr, "-p is required")
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	md, err := c.markdown(ctx, a)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.plain {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	styled, err := glamour.Render(md, "auto")
	if err != nil {
		// Styling is cosmetic; fall back to the raw markdown.
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	fmt.Print(styled)
	return subcommands.ExitSuccess
}

func (c *reportCmd) markdown(ctx context.Context, a *app) (string, error) {
	p, err := a.store.PortfolioByName(ctx, c.portfolio)
	if err != nil {
		return "", err
	}
	snaps, err := a.store.Snapshots(ctx, p.ID, date.Date{}, date.Date{})
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "", fmt.Errorf("portfolio %q has no snapshots, run 'mdash rebuild' first", p.Name)
	}

	report := &renderer.Report{
		Name:   p.Name,
		Latest: snaps[len(snaps)-1],
		Stats:  portfolio.Analyze(snaps),
	}

	if !p.IsAggregate {
		alloc, err := c.allocation(ctx, a, p.ID, report.Latest.CashBalance)
		if err != nil {
			return "", err
		}
		report.Allocation = alloc
	}

	md := renderer.RenderReport(report)

	if c.lots && !p.IsAggregate {
		accountIDs, err := a.store.PortfolioAccountIDs(ctx, p.ID)
		if err != nil {
			return "", err
		}
		for _, id := range accountIDs {
			lots, err := a.store.OpenLots(ctx, id)
			if err != nil {
				return "", err
			}
			account := ""
			if len(lots) > 0 {
				account = lots[0].Account
			}
			md += "\n" + renderer.RenderLots(account, lots)
		}
	}
	return md, nil
}

// allocation values the portfolio's open lots at the latest cached
// prices and expresses each symbol as a fraction of the whole.
func (c *reportCmd) allocation(ctx context.Context, a *app, portfolioID int64, cash float64) (map[string]float64, error) {
	txs, err := a.store.PortfolioTransactions(ctx, portfolioID)
	if err != nil {
		return nil, err
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
	prices, err := a.store.LoadPrices(ctx, list)
	if err != nil {
		return nil, err
	}
	adjuster := portfolio.NewSplitAdjuster(txs, a.log)

	book := portfolio.NewLotBook("", a.log)
	book.Rebuild(txs)
	positions := portfolio.OpenPositions(book, prices, adjuster)

	return portfolio.CurrentAllocation(positions, cash, a.cfg.Ledger.CashSymbol), nil
}
