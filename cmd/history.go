package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/autobasher/portfolio/date"
	"github.com/autobasher/portfolio/renderer"
)

type historyCmd struct {
	portfolio string
	from      string
	to        string
	tail      int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display a portfolio's daily value history" }
func (*historyCmd) Usage() string {
	return `mdash history -p <portfolio> [-s <start>] [-d <end>] [-tail <n>]

  Prints the daily snapshot series: market value, net deposits, cash,
  and cumulative time-weighted return.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "portfolio name")
	f.StringVar(&c.from, "s", "", "start date (YYYY-MM-DD)")
	f.StringVar(&c.to, "d", "", "end date (YYYY-MM-DD)")
	f.IntVar(&c.tail, "tail", 0, "show only the last N days")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolio == "" {
		fmt.Fprintln(os.Stderr, "-p is required")
		return subcommands.ExitUsageError
	}

	var from, to date.Date
	var err error
	if c.from != "" {
		if from, err = date.Parse(c.from); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}
	if c.to != "" {
		if to, err = date.Parse(c.to); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	p, err := a.store.PortfolioByName(ctx, c.portfolio)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	snaps, err := a.store.Snapshots(ctx, p.ID, from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if c.tail > 0 && len(snaps) > c.tail {
		snaps = snaps[len(snaps)-c.tail:]
	}

	fmt.Print(renderer.RenderHistory(p.Name, snaps))
	return subcommands.ExitSuccess
}
