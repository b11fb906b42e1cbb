package portfolio

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// tradingDaysPerYear scales daily risk statistics to annual terms.
const tradingDaysPerYear = 252

// PerformanceReport bundles the portfolio-level statistics derived
// from one snapshot series. Pointer fields are nil when the series is
// too short to define the statistic.
type PerformanceReport struct {
	TotalReturn      *float64 // cumulative TWR over the series
	AnnualizedReturn *float64 // TWR annualized over the series length
	XIRR             *float64 // money-weighted annual rate
	Sharpe           *float64
	Volatility       *float64 // annualized standard deviation of daily returns
	MaxDrawdown      *float64 // largest peak-to-trough loss, <= 0
}

// Analyze computes the full performance report for a snapshot series.
func Analyze(snaps []Snapshot) PerformanceReport {
	var r PerformanceReport
	if tr, ok := TotalReturn(snaps); ok {
		r.TotalReturn = &tr
	}
	if ar, ok := AnnualizedReturn(snaps); ok {
		r.AnnualizedReturn = &ar
	}
	if x, err := PortfolioXIRR(snaps); err == nil {
		r.XIRR = &x
	}
	daily := DailyReturns(snaps)
	if s, ok := SharpeRatio(daily); ok {
		r.Sharpe = &s
	}
	if v, ok := AnnualVolatility(daily); ok {
		r.Volatility = &v
	}
	if dd, ok := MaxDrawdown(snaps); ok {
		r.MaxDrawdown = &dd
	}
	return r
}

// TotalReturn is the cumulative time-weighted return over the series,
// read off the final snapshot. Undefined for fewer than two snapshots.
func TotalReturn(snaps []Snapshot) (float64, bool) {
	if len(snaps) < 2 {
		return 0, false
	}
	return snaps[len(snaps)-1].TWR, true
}

// AnnualizedReturn converts the cumulative TWR into an annual rate
// using the calendar span of the series.
func AnnualizedReturn(snaps []Snapshot) (float64, bool) {
	total, ok := TotalReturn(snaps)
	if !ok {
		return 0, false
	}
	days := snaps[len(snaps)-1].Date.Sub(snaps[0].Date)
	if days <= 0 || total <= -1 {
		return 0, false
	}
	return math.Pow(1+total, 365.25/float64(days)) - 1, true
}

// DailyReturns unchains the cumulative TWR back into per-day returns,
// so risk statistics see flow-adjusted returns rather than raw value
// changes. Days where the previous cumulative factor is zero are
// skipped.
func DailyReturns(snaps []Snapshot) []float64 {
	if len(snaps) < 2 {
		return nil
	}
	out := make([]float64, 0, len(snaps)-1)
	for i := 1; i < len(snaps); i++ {
		prev := 1 + snaps[i-1].TWR
		if prev == 0 {
			continue
		}
		out = append(out, (1+snaps[i].TWR)/prev-1)
	}
	return out
}

// SharpeRatio is the annualized ratio of mean daily return to its
// sample standard deviation, with the risk-free rate taken as zero.
// Undefined for fewer than two observations or zero variance.
func SharpeRatio(daily []float64) (float64, bool) {
	mean, std, ok := meanStd(daily)
	if !ok || std == 0 {
		return 0, false
	}
	return mean / std * math.Sqrt(tradingDaysPerYear), true
}

// AnnualVolatility is the sample standard deviation of daily returns
// scaled to annual terms.
func AnnualVolatility(daily []float64) (float64, bool) {
	_, std, ok := meanStd(daily)
	if !ok {
		return 0, false
	}
	return std * math.Sqrt(tradingDaysPerYear), true
}

// MaxDrawdown is the largest peak-to-trough decline of the cumulative
// return series, as a non-positive fraction of the peak.
func MaxDrawdown(snaps []Snapshot) (float64, bool) {
	if len(snaps) < 2 {
		return 0, false
	}
	peak := 1 + snaps[0].TWR
	worst := 0.0
	for _, s := range snaps[1:] {
		wealth := 1 + s.TWR
		if wealth > peak {
			peak = wealth
		}
		if peak > 0 {
			if dd := wealth/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst, true
}

// meanStd returns the mean and sample (n-1) standard deviation.
func meanStd(xs []float64) (mean, std float64, ok bool) {
	n := len(xs)
	if n < 2 {
		return 0, 0, false
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1)), true
}

// Position is one open holding valued at the latest known price.
type Position struct {
	Symbol      string
	Shares      decimal.Decimal
	CostBasis   decimal.Decimal
	MarketValue float64
}

// OpenPositions folds a lot book's open lots into per-symbol positions
// valued with the latest price on record, in lexical symbol order.
func OpenPositions(book *LotBook, prices *PriceSet, adjuster *SplitAdjuster) []Position {
	bySymbol := make(map[string]*Position)
	for _, lot := range book.OpenLots("") {
		p, ok := bySymbol[lot.Symbol]
		if !ok {
			p = &Position{Symbol: lot.Symbol}
			bySymbol[lot.Symbol] = p
		}
		p.Shares = p.Shares.Add(lot.SharesRemaining)
		p.CostBasis = p.CostBasis.Add(lot.SharesRemaining.Mul(lot.CostPerShare))
	}
	out := make([]Position, 0, len(bySymbol))
	for _, sym := range sortedKeys(bySymbol) {
		p := bySymbol[sym]
		if pt, on, ok := prices.Latest(sym); ok {
			factor := 1.0
			if adjuster != nil {
				factor = adjuster.Factor(sym, on)
			}
			p.MarketValue = p.Shares.InexactFloat64() * pt * factor
		}
		out = append(out, *p)
	}
	return out
}

// UnrealizedGain is the market value of the open positions minus their
// remaining cost basis.
func UnrealizedGain(positions []Position) float64 {
	var gain float64
	for _, p := range positions {
		gain += p.MarketValue - p.CostBasis.InexactFloat64()
	}
	return gain
}

// RealizedGain sums the recorded gains of all disposals in the book.
func RealizedGain(book *LotBook) decimal.Decimal {
	total := decimal.Zero
	for _, d := range book.Disposals() {
		total = total.Add(d.Gain)
	}
	return total
}

// CurrentAllocation expresses each position's market value as a
// fraction of the whole. Cash, when positive, appears under the cash
// symbol. An empty map is returned when nothing has positive value.
func CurrentAllocation(positions []Position, cash float64, cashSymbol string) map[string]float64 {
	total := math.Max(cash, 0)
	for _, p := range positions {
		if p.MarketValue > 0 {
			total += p.MarketValue
		}
	}
	if total <= 0 {
		return map[string]float64{}
	}
	out := make(map[string]float64)
	for _, p := range positions {
		if p.MarketValue > 0 {
			out[p.Symbol] += p.MarketValue / total
		}
	}
	if cash > 0 {
		if cashSymbol == "" {
			cashSymbol = DefaultCashSymbol
		}
		out[cashSymbol] += cash / total
	}
	return out
}

func sortedKeys[V any](m map[string]*V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
