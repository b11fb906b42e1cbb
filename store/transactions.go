package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

type txRow struct {
	ID          int64  `db:"id"`
	AccountID   int64  `db:"account_id"`
	AccountName string `db:"account_name"`
	TradeDate   string `db:"trade_date"`
	Settlement  string `db:"settlement"`
	Type        string `db:"type"`
	Symbol      string `db:"symbol"`
	Shares      string `db:"shares"`
	Price       string `db:"price"`
	Amount      string `db:"amount"`
	Fees        string `db:"fees"`
	SplitRatio  string `db:"split_ratio"`
	Description string `db:"description"`
	Source      string `db:"source"`
}

func (r txRow) transaction() (portfolio.Transaction, error) {
	t, err := portfolio.ParseTxType(r.Type)
	if err != nil {
		return portfolio.Transaction{}, fmt.Errorf("transaction %d: %w", r.ID, err)
	}
	tradeDate, err := date.Parse(r.TradeDate)
	if err != nil {
		return portfolio.Transaction{}, fmt.Errorf("transaction %d: trade date: %w", r.ID, err)
	}
	var settlement date.Date
	if r.Settlement != "" {
		if settlement, err = date.Parse(r.Settlement); err != nil {
			return portfolio.Transaction{}, fmt.Errorf("transaction %d: settlement: %w", r.ID, err)
		}
	}
	dec := func(field, s string) decimal.Decimal {
		if s == "" {
			return decimal.Zero
		}
		d, derr := decimal.NewFromString(s)
		if derr != nil && err == nil {
			err = fmt.Errorf("transaction %d: %s: %w", r.ID, field, derr)
		}
		return d
	}
	tx := portfolio.Transaction{
		ID:          r.ID,
		Account:     r.AccountName,
		TradeDate:   tradeDate,
		Settlement:  settlement,
		Type:        t,
		Symbol:      r.Symbol,
		Shares:      dec("shares", r.Shares),
		Price:       dec("price", r.Price),
		Amount:      dec("amount", r.Amount),
		Fees:        dec("fees", r.Fees),
		SplitRatio:  dec("split_ratio", r.SplitRatio),
		Description: r.Description,
		Source:      r.Source,
	}
	return tx, err
}

// InsertTransaction appends one transaction to an account's log and
// returns its assigned id.
func (s *Store) InsertTransaction(ctx context.Context, accountID int64, tx portfolio.Transaction) (int64, error) {
	settlement := ""
	if !tx.Settlement.IsZero() {
		settlement = tx.Settlement.String()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(account_id, trade_date, settlement, type, symbol, shares, price, amount, fees, split_ratio, description, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, tx.TradeDate.String(), settlement, tx.Type.String(), tx.Symbol,
		tx.Shares.String(), tx.Price.String(), tx.Amount.String(), tx.Fees.String(),
		tx.SplitRatio.String(), tx.Description, tx.Source)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// AccountTransactions returns one account's full transaction log in
// replay order.
func (s *Store) AccountTransactions(ctx context.Context, accountID int64) ([]portfolio.Transaction, error) {
	return s.selectTransactions(ctx, `
		SELECT t.id, t.account_id, a.name AS account_name, t.trade_date, t.settlement,
		       t.type, t.symbol, t.shares, t.price, t.amount, t.fees, t.split_ratio,
		       t.description, t.source
		FROM transactions t JOIN accounts a ON a.id = t.account_id
		WHERE t.account_id = ?
		ORDER BY t.trade_date, t.id`, accountID)
}

// PortfolioTransactions returns the merged transaction log of every
// account in a regular portfolio, in replay order.
func (s *Store) PortfolioTransactions(ctx context.Context, portfolioID int64) ([]portfolio.Transaction, error) {
	return s.selectTransactions(ctx, `
		SELECT t.id, t.account_id, a.name AS account_name, t.trade_date, t.settlement,
		       t.type, t.symbol, t.shares, t.price, t.amount, t.fees, t.split_ratio,
		       t.description, t.source
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		JOIN portfolio_accounts pa ON pa.account_id = t.account_id
		WHERE pa.portfolio_id = ?
		ORDER BY t.trade_date, t.id`, portfolioID)
}

// TradedSymbols returns every distinct symbol referenced by a
// transaction, in lexical order.
func (s *Store) TradedSymbols(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out,
		`SELECT DISTINCT symbol FROM transactions WHERE symbol != '' ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("list traded symbols: %w", err)
	}
	return out, nil
}

func (s *Store) selectTransactions(ctx context.Context, query string, args ...any) ([]portfolio.Transaction, error) {
	var rows []txRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	out := make([]portfolio.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.transaction()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
