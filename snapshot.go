package portfolio

import (
	"math"
	"sort"

	"github.com/autobasher/portfolio/date"
	"go.uber.org/zap"
)

// DefaultCashSymbol is the settlement-fund (money-market) symbol a
// brokerage sweeps idle cash into. DRIPs into this symbol are cash
// reinvestments, not new equity positions.
const DefaultCashSymbol = "VMFXX"

// Snapshot is one daily valuation row of a portfolio.
//
// TotalCost is the running total of derived external cash flows (net
// deposits), not a literal sum of deposit transactions. CashBalance is
// the settlement-fund balance only: proceeds and purchases settle
// through explicit sweep transactions, never implicitly.
type Snapshot struct {
	Date        date.Date
	TotalValue  float64
	TotalCost   float64
	CashBalance float64
	TWR         float64 // cumulative time-weighted return
}

// BuildDailySnapshots replays all transactions of one portfolio into a
// daily valuation series, from the earliest trade date through 'end'
// (inclusive; zero means today). Every calendar day is emitted;
// non-trading days reuse the last known price.
//
// Each day, in strict order:
//
//  1. Value yesterday's positions at today's close, using yesterday's
//     split factor so the price vintage matches the pre-split counts.
//  2. Refresh last-known prices with today's closes, converted with
//     today's factor.
//  3. Apply every transaction dated on or before today (a cursor,
//     nothing is reprocessed).
//  4. Total value = positive positions at last-known prices, plus the
//     settlement-fund balance clamped at zero.
//  5. The residual (total - pre-transaction value - investment income)
//     is the day's external cash flow, accumulated into net deposits.
//     A mismatch between the split factor step and the SPLIT
//     transaction's share scaling lands here, visibly, instead of
//     silently corrupting the return series.
//  6. Chain the day's flow-adjusted return into the cumulative TWR.
//
// The series is always rebuilt in full: TWR chaining and the cash-flow
// residual are order-dependent across the entire history, so
// incremental appends cannot be reproducible.
func BuildDailySnapshots(txs []Transaction, prices *PriceSet, cashSymbol string, end date.Date, log *zap.Logger) []Snapshot {
	if len(txs) == 0 {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cashSymbol == "" {
		cashSymbol = DefaultCashSymbol
	}
	if prices == nil {
		prices = NewPriceSet()
	}

	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	SortTransactions(ordered)

	first := ordered[0].TradeDate
	if end.IsZero() {
		end = date.Today()
	}

	symbols := txSymbols(ordered)
	adjuster := NewSplitAdjuster(ordered, log)

	positions := make(map[string]float64) // symbol -> shares held
	lastPrice := make(map[string]float64) // symbol -> last known unadjusted close
	var (
		cash          float64 // settlement-fund balance, sweeps and cash DRIPs only
		netDeposits   float64
		prevTotal     float64
		cumulativeTWR float64
		cursor        int
	)

	var out []Snapshot
	for today := range date.Days(first, end) {
		yesterday := today.Add(-1)

		// 1. Pre-transaction value: yesterday's positions at today's
		// prices, adjusted with yesterday's factor.
		preTxEquity := 0.0
		for sym, held := range positions {
			if held <= 0 {
				continue
			}
			if raw, ok := prices.Get(sym, today); ok {
				preTxEquity += held * raw * adjuster.Factor(sym, yesterday)
			} else {
				preTxEquity += held * lastPrice[sym]
			}
		}
		preTxValue := preTxEquity + math.Max(cash, 0)

		// 2. Refresh last-known prices with today's factor.
		for _, sym := range symbols {
			if raw, ok := prices.Get(sym, today); ok {
				lastPrice[sym] = raw * adjuster.Factor(sym, today)
			}
		}

		// 3. Apply this day's transactions.
		investmentIncome := 0.0
		for cursor < len(ordered) && !ordered[cursor].TradeDate.After(today) {
			tx := ordered[cursor]
			cursor++

			shares := tx.shares().InexactFloat64()
			amount := tx.absAmount().InexactFloat64()

			switch tx.Type {
			case TxSweepIn:
				cash += amount
			case TxSweepOut:
				cash -= amount
			case TxBuy, TxDrip:
				if tx.Type == TxDrip && tx.Symbol == cashSymbol {
					cash += amount
				} else if tx.Symbol != "" && shares != 0 {
					positions[tx.Symbol] += shares
				}
			case TxSell:
				if tx.Symbol != "" {
					// No floor: transient negatives from same-day
					// sequencing quirks reconcile with later events.
					positions[tx.Symbol] -= shares
				}
			case TxTransferIn:
				if tx.Symbol != "" && shares != 0 {
					positions[tx.Symbol] += shares
				}
			case TxTransferOut:
				if tx.Symbol != "" && shares != 0 {
					positions[tx.Symbol] -= shares
				}
			case TxSplit:
				ratio := 1.0
				if tx.hasSplitRatio() {
					ratio = tx.SplitRatio.InexactFloat64()
				}
				if _, ok := positions[tx.Symbol]; tx.Symbol != "" && ok {
					positions[tx.Symbol] *= ratio
				}
			case TxDividend, TxFee:
				investmentIncome += tx.Amount.InexactFloat64()
			default:
				log.Warn("unhandled transaction type in snapshot replay",
					zap.Stringer("type", tx.Type), zap.Int64("tx_id", tx.ID))
			}
		}

		// 4. Today's total value.
		equity := 0.0
		for sym, held := range positions {
			if held > 0 {
				equity += held * lastPrice[sym]
			}
		}
		clampedCash := math.Max(cash, 0)
		total := equity + clampedCash

		// 5. External cash flow is the residual.
		externalCF := total - preTxValue - investmentIncome
		netDeposits += externalCF

		// 6. Chain TWR, guarding against a non-positive base after a
		// full liquidation.
		if prevTotal > 0 {
			dailyReturn := 0.0
			if base := prevTotal + externalCF; base > 0 {
				dailyReturn = total/base - 1
			}
			cumulativeTWR = (1+cumulativeTWR)*(1+dailyReturn) - 1
		}
		prevTotal = total

		out = append(out, Snapshot{
			Date:        today,
			TotalValue:  total,
			TotalCost:   netDeposits,
			CashBalance: clampedCash,
			TWR:         cumulativeTWR,
		})
	}
	return out
}

// AggregateSnapshots folds several members' snapshot series into one
// combined series: values, costs, and cash sum per date (a missing date
// means the member did not exist yet and contributes zero), and the TWR
// is re-chained from the combined series, using the day's change in
// combined net deposits as the external flow. Summing member TWRs would
// be meaningless; the chain has to be rebuilt.
func AggregateSnapshots(members ...[]Snapshot) []Snapshot {
	byDate := make(map[date.Date]*Snapshot)
	costBefore := make(map[date.Date]float64) // combined TotalCost carried into each date
	for _, series := range members {
		prevCost := 0.0
		for _, s := range series {
			agg, ok := byDate[s.Date]
			if !ok {
				agg = &Snapshot{Date: s.Date}
				byDate[s.Date] = agg
			}
			agg.TotalValue += s.TotalValue
			agg.TotalCost += s.TotalCost
			agg.CashBalance += s.CashBalance
			costBefore[s.Date] += prevCost
			prevCost = s.TotalCost
		}
	}
	if len(byDate) == 0 {
		return nil
	}

	out := make([]Snapshot, 0, len(byDate))
	for _, s := range byDate {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	prevTotal := 0.0
	cumulativeTWR := 0.0
	for i := range out {
		externalCF := out[i].TotalCost - costBefore[out[i].Date]
		if prevTotal > 0 {
			dailyReturn := 0.0
			if base := prevTotal + externalCF; base > 0 {
				dailyReturn = out[i].TotalValue/base - 1
			}
			cumulativeTWR = (1+cumulativeTWR)*(1+dailyReturn) - 1
		}
		prevTotal = out[i].TotalValue
		out[i].TWR = cumulativeTWR
	}
	return out
}

// txSymbols collects the distinct symbols referenced by the
// transactions, in lexical order.
func txSymbols(txs []Transaction) []string {
	seen := make(map[string]struct{})
	for _, tx := range txs {
		if tx.Symbol != "" {
			seen[tx.Symbol] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
