package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/autobasher/portfolio/store"
)

type portfolioCmd struct {
	name      string
	aggregate bool
	account   string
	member    string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "create portfolios and link accounts or members" }
func (*portfolioCmd) Usage() string {
	return `mdash portfolio -p <name> [-aggregate] [-a <account>] [-m <member>]

  Creates the portfolio if it does not exist. -a links a brokerage
  account into a regular portfolio; -m links a member portfolio into an
  aggregate. Without -a or -m, lists all portfolios.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "p", "", "portfolio name")
	f.BoolVar(&c.aggregate, "aggregate", false, "create as an aggregate of other portfolios")
	f.StringVar(&c.account, "a", "", "account to link into the portfolio")
	f.StringVar(&c.member, "m", "", "member portfolio to link into the aggregate")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

func (c *portfolioCmd) run(ctx context.Context, a *app) error {
	if c.name == "" {
		portfolios, err := a.store.Portfolios(ctx)
		if err != nil {
			return err
		}
		for _, p := range portfolios {
			kind := "portfolio"
			if p.IsAggregate {
				kind = "aggregate"
			}
			fmt.Printf("%s\t%s\n", p.Name, kind)
		}
		return nil
	}

	p, err := a.store.PortfolioByName(ctx, c.name)
	if errors.Is(err, store.ErrNotFound) {
		if p, err = a.store.CreatePortfolio(ctx, c.name, c.aggregate); err != nil {
			return err
		}
		fmt.Printf("Created portfolio %s\n", p.Name)
	} else if err != nil {
		return err
	}

	if c.account != "" {
		if p.IsAggregate {
			return fmt.Errorf("cannot link an account into aggregate %q", p.Name)
		}
		acct, err := a.store.AccountByName(ctx, c.account)
		if errors.Is(err, store.ErrNotFound) {
			acct, err = a.store.CreateAccount(ctx, c.account, "")
		}
		if err != nil {
			return err
		}
		if err := a.store.AddPortfolioAccount(ctx, p.ID, acct.ID); err != nil {
			return err
		}
		fmt.Printf("Linked account %s into %s\n", acct.Name, p.Name)
	}

	if c.member != "" {
		if !p.IsAggregate {
			return fmt.Errorf("%q is not an aggregate portfolio", p.Name)
		}
		m, err := a.store.PortfolioByName(ctx, c.member)
		if err != nil {
			return err
		}
		if err := a.store.AddAggregateMember(ctx, p.ID, m.ID); err != nil {
			return err
		}
		fmt.Printf("Linked member %s into %s\n", m.Name, p.Name)
	}
	return nil
}
