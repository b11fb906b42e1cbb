package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
	"github.com/autobasher/portfolio/store"
)

type txCmd struct {
	account     string
	dateStr     string
	typeStr     string
	symbol      string
	shares      string
	price       string
	amount      string
	fees        string
	ratio       string
	description string
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "record a transaction and rebuild the account's lots" }
func (*txCmd) Usage() string {
	return `mdash tx -a <account> -t <type> [-d <date>] [-s <symbol>] [-n <shares>] [-p <price>] [-m <amount>] [-f <fees>] [-r <ratio>]

  Appends one transaction to an account's log. Types: BUY, SELL,
  DIVIDEND, SPLIT, TRANSFER_IN, TRANSFER_OUT, FEE, DRIP, SWEEP_IN,
  SWEEP_OUT. The account is created on first use, and its tax lots are
  rebuilt after the insert.
`
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "account name")
	f.StringVar(&c.dateStr, "d", "", "trade date (YYYY-MM-DD, default today)")
	f.StringVar(&c.typeStr, "t", "", "transaction type")
	f.StringVar(&c.symbol, "s", "", "ticker symbol")
	f.StringVar(&c.shares, "n", "", "number of shares")
	f.StringVar(&c.price, "p", "", "price per share")
	f.StringVar(&c.amount, "m", "", "total cash amount, signed as reported by the broker")
	f.StringVar(&c.fees, "f", "", "fees and commissions")
	f.StringVar(&c.ratio, "r", "", "split ratio, new shares per old share")
	f.StringVar(&c.description, "desc", "", "free-form description")
}

func (c *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.typeStr == "" {
		fmt.Fprintln(os.Stderr, "both -a and -t are required")
		return subcommands.ExitUsageError
	}
	tx, err := c.transaction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	acct, err := a.store.AccountByName(ctx, c.account)
	if errors.Is(err, store.ErrNotFound) {
		acct, err = a.store.CreateAccount(ctx, c.account, "")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	id, err := a.store.InsertTransaction(ctx, acct.ID, tx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := a.store.RebuildLots(ctx, acct.ID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Recorded %s transaction %d in account %s\n", tx.Type, id, c.account)
	return subcommands.ExitSuccess
}

func (c *txCmd) transaction() (portfolio.Transaction, error) {
	txType, err := portfolio.ParseTxType(c.typeStr)
	if err != nil {
		return portfolio.Transaction{}, err
	}

	tradeDate := date.Today()
	if c.dateStr != "" {
		if tradeDate, err = date.Parse(c.dateStr); err != nil {
			return portfolio.Transaction{}, fmt.Errorf("invalid date: %w", err)
		}
	}

	parse := func(name, s string) decimal.Decimal {
		if s == "" {
			return decimal.Zero
		}
		d, perr := decimal.NewFromString(s)
		if perr != nil && err == nil {
			err = fmt.Errorf("invalid %s %q: %w", name, s, perr)
		}
		return d
	}
	tx := portfolio.Transaction{
		TradeDate:   tradeDate,
		Type:        txType,
		Symbol:      c.symbol,
		Shares:      parse("shares", c.shares),
		Price:       parse("price", c.price),
		Amount:      parse("amount", c.amount),
		Fees:        parse("fees", c.fees),
		SplitRatio:  parse("ratio", c.ratio),
		Description: c.description,
		Source:      "cli",
	}
	return tx, err
}
