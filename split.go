package portfolio

import (
	"github.com/autobasher/portfolio/date"
	"go.uber.org/zap"
)

// SplitAdjuster converts the split-adjusted close series returned by
// external price feeds back into the price that actually traded on a
// historical date.
//
// Feeds retroactively restate the whole Close series for every split,
// so a close fetched today is consistent with today's share count, not
// with the count held on a pre-split date. Multiplying the feed's close
// by Factor(symbol, date) undoes that restatement.
//
// The factor is a right-continuous step function: on and after the most
// recent split the factor is 1.0 (no further adjustment needed), and
// strictly before a split it additionally carries that split's ratio.
// This boundary convention must agree with how the lot engine and the
// snapshot builder scale share counts on the split date, or valuation
// and position would disagree by exactly one day at the boundary.
type SplitAdjuster struct {
	factors map[string]*symbolFactors
}

type symbolFactors struct {
	steps  date.History[float64]
	before float64 // factor for dates before the earliest known split
}

// NewSplitAdjuster builds the per-symbol factor functions from the full
// transaction history. Only SPLIT transactions matter; a SPLIT with a
// missing ratio is a data-quality gap, flagged and treated as 1.0.
func NewSplitAdjuster(txs []Transaction, log *zap.Logger) *SplitAdjuster {
	if log == nil {
		log = zap.NewNop()
	}

	type split struct {
		on    date.Date
		ratio float64
	}
	bySymbol := make(map[string][]split)

	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	SortTransactions(ordered)

	for _, tx := range ordered {
		if tx.Type != TxSplit || tx.Symbol == "" {
			continue
		}
		ratio := 1.0
		if tx.hasSplitRatio() {
			ratio = tx.SplitRatio.InexactFloat64()
		} else {
			log.Warn("split transaction without ratio, treating as 1.0",
				zap.String("symbol", tx.Symbol),
				zap.Stringer("date", tx.TradeDate),
				zap.Int64("tx_id", tx.ID))
		}
		// Two splits recorded on one date are one combined boundary:
		// the factor on that date must still be the product of all
		// later ratios only.
		if prev := bySymbol[tx.Symbol]; len(prev) > 0 && prev[len(prev)-1].on == tx.TradeDate {
			prev[len(prev)-1].ratio *= ratio
			continue
		}
		bySymbol[tx.Symbol] = append(bySymbol[tx.Symbol], split{tx.TradeDate, ratio})
	}

	a := &SplitAdjuster{factors: make(map[string]*symbolFactors, len(bySymbol))}
	for symbol, splits := range bySymbol {
		fs := &symbolFactors{}
		// Walk backward from the most recent split. The factor stepping
		// in at a split date excludes that split's own ratio: the feed
		// needs no adjustment for a split once it has happened.
		cum := 1.0
		for i := len(splits) - 1; i >= 0; i-- {
			fs.steps.Append(splits[i].on, cum)
			cum *= splits[i].ratio
		}
		fs.before = cum
		a.factors[symbol] = fs
	}
	return a
}

// Factor returns the multiplier converting the feed's adjusted close
// into the actual traded price of the symbol on the given date.
// Symbols with no recorded splits have factor 1.0 everywhere.
func (a *SplitAdjuster) Factor(symbol string, on date.Date) float64 {
	fs, ok := a.factors[symbol]
	if !ok {
		return 1.0
	}
	if v, ok := fs.steps.ValueAsOf(on); ok {
		return v
	}
	return fs.before
}

// HasSplits reports whether any split is recorded for the symbol.
func (a *SplitAdjuster) HasSplits(symbol string) bool {
	_, ok := a.factors[symbol]
	return ok
}
