package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

type fetchCmd struct {
	symbols string
	from    string
	to      string
	live    bool
	splits  bool
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "download prices from the market data feed" }
func (*fetchCmd) Usage() string {
	return `mdash fetch [-symbols <a,b,c>] [-s <start>] [-d <end>] [-live] [-splits]

  Fills the daily close cache for the given symbols (default: every
  symbol referenced by a transaction). -live also refreshes intraday
  quotes; -splits prints the feed's split history for review.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbols, "symbols", "", "comma-separated symbols (default: all traded symbols)")
	f.StringVar(&c.from, "s", "", "start date (default one year ago)")
	f.StringVar(&c.to, "d", "", "end date (default today)")
	f.BoolVar(&c.live, "live", false, "also refresh live quotes")
	f.BoolVar(&c.splits, "splits", false, "print the feed's split history")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := c.run(ctx, a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *fetchCmd) run(ctx context.Context, a *app) error {
	feed, err := a.feed()
	if err != nil {
		return err
	}

	symbols, err := c.symbolList(ctx, a)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to fetch")
	}

	to := date.Today()
	if c.to != "" {
		if to, err = date.Parse(c.to); err != nil {
			return err
		}
	}
	from := to.Add(-365)
	if c.from != "" {
		if from, err = date.Parse(c.from); err != nil {
			return err
		}
	}

	cache := portfolio.NewFetchCache()
	if err := a.store.EnsurePrices(ctx, feed, cache, symbols, from, to); err != nil {
		return err
	}
	fmt.Printf("Price cache filled for %d symbols through %s\n", len(symbols), to)

	if c.splits {
		for _, sym := range symbols {
			splits, err := feed.Splits(ctx, sym, from, to)
			if err != nil {
				return err
			}
			for _, sp := range splits {
				fmt.Printf("%s %s split ratio %s\n", sp.On, sym, sp.Ratio)
			}
		}
	}

	if c.live {
		for _, sym := range symbols {
			price, err := feed.Live(ctx, sym)
			if err != nil {
				fmt.Fprintf(os.Stderr, "live quote for %s failed: %v\n", sym, err)
				continue
			}
			fmt.Printf("%s %v\n", sym, price)
		}
	}
	return nil
}

func (c *fetchCmd) symbolList(ctx context.Context, a *app) ([]string, error) {
	if c.symbols != "" {
		parts := strings.Split(c.symbols, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return a.store.TradedSymbols(ctx)
}
