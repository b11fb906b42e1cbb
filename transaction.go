package portfolio

import (
	"fmt"
	"sort"

	"github.com/autobasher/portfolio/date"
	"github.com/shopspring/decimal"
)

// TxType identifies the kind of a transaction. The set is closed: both
// the lot engine and the snapshot builder switch exhaustively over it,
// so adding a type means updating both consumers.
type TxType int

const (
	TxBuy TxType = iota
	TxSell
	TxDividend
	TxSplit
	TxTransferIn
	TxTransferOut
	TxFee
	TxDrip
	TxSweepIn
	TxSweepOut
)

var txTypeNames = map[TxType]string{
	TxBuy:         "BUY",
	TxSell:        "SELL",
	TxDividend:    "DIVIDEND",
	TxSplit:       "SPLIT",
	TxTransferIn:  "TRANSFER_IN",
	TxTransferOut: "TRANSFER_OUT",
	TxFee:         "FEE",
	TxDrip:        "DRIP",
	TxSweepIn:     "SWEEP_IN",
	TxSweepOut:    "SWEEP_OUT",
}

func (t TxType) String() string {
	if s, ok := txTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TxType(%d)", int(t))
}

// ParseTxType parses the canonical wire name of a transaction type.
func ParseTxType(s string) (TxType, error) {
	for t, name := range txTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction type %q", s)
}

// Transaction is one immutable brokerage event. Created by import or by
// the tx subcommand; never mutated by the accounting core.
//
// Shares is always a non-negative magnitude: direction is carried by the
// type. Amount is the signed total cash amount as reported by the
// broker (a BUY is typically negative). SplitRatio is new shares per
// old share (0.1 for a 1-for-10 reverse split); zero means absent.
type Transaction struct {
	ID          int64
	Account     string
	TradeDate   date.Date
	Settlement  date.Date // zero when the broker did not report one
	Type        TxType
	Symbol      string // "" for pure cash events
	Shares      decimal.Decimal
	Price       decimal.Decimal // per-share price, zero when absent
	Amount      decimal.Decimal
	Fees        decimal.Decimal
	SplitRatio  decimal.Decimal
	Description string
	Source      string // import provenance, e.g. a statement filename
}

// SortTransactions orders transactions by (trade date, insertion id).
// Same-day events must replay in insertion order for the ledger to be
// deterministic, so the sort is total.
func SortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if c := txs[i].TradeDate.Compare(txs[j].TradeDate); c != 0 {
			return c < 0
		}
		return txs[i].ID < txs[j].ID
	})
}

// absAmount returns the magnitude of the total cash amount.
func (t Transaction) absAmount() decimal.Decimal { return t.Amount.Abs() }

// absFees returns the magnitude of the fees.
func (t Transaction) absFees() decimal.Decimal { return t.Fees.Abs() }

// shares returns the share magnitude.
func (t Transaction) shares() decimal.Decimal { return t.Shares.Abs() }

// hasSplitRatio reports whether the split ratio is present and usable.
func (t Transaction) hasSplitRatio() bool { return t.SplitRatio.IsPositive() }
