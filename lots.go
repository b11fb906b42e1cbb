package portfolio

import (
	"sort"

	"github.com/autobasher/portfolio/date"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// shareEpsilon is the tolerance below which a share residue is treated
// as floating-point dust rather than a real shortfall.
var shareEpsilon = decimal.New(1, -9) // 1e-9

// Lot is a parcel of shares acquired on one date at one cost basis per
// share. TotalCost is fixed at creation (SharesAcquired × CostPerShare)
// and deliberately left untouched by splits: a split restates the
// per-share cost and the share counts, not the historical outlay.
type Lot struct {
	ID              int64
	Account         string
	Symbol          string
	AcquiredDate    date.Date
	SharesAcquired  decimal.Decimal
	SharesRemaining decimal.Decimal
	CostPerShare    decimal.Decimal
	TotalCost       decimal.Decimal
	SourceTxID      int64
}

// Open reports whether the lot still holds shares.
func (l Lot) Open() bool { return l.SharesRemaining.GreaterThan(shareEpsilon) }

// Disposal records a SELL's consumption of one lot. One SELL spanning
// several lots produces several disposals.
type Disposal struct {
	SellTxID  int64
	LotID     int64
	Symbol    string
	Shares    decimal.Decimal
	CostBasis decimal.Decimal
	Proceeds  decimal.Decimal
	Gain      decimal.Decimal // Proceeds - CostBasis
}

// LotBook replays one account's transactions into its lot and disposal
// ledger, enforcing first-in-first-out cost recovery. It is rebuilt
// wholesale from the transaction history; it is never updated
// incrementally.
type LotBook struct {
	account   string
	log       *zap.Logger
	lots      []*Lot
	disposals []Disposal
	nextLotID int64
}

// NewLotBook creates an empty lot book for one account. A nil logger is
// replaced with a no-op logger.
func NewLotBook(account string, log *zap.Logger) *LotBook {
	if log == nil {
		log = zap.NewNop()
	}
	return &LotBook{account: account, log: log, nextLotID: 1}
}

// Rebuild wipes all lots and disposals and replays the given
// transactions in (trade date, id) order. Replaying the same
// transactions twice yields identical state.
func (b *LotBook) Rebuild(txs []Transaction) {
	b.lots = b.lots[:0]
	b.disposals = b.disposals[:0]
	b.nextLotID = 1

	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	SortTransactions(ordered)

	for _, tx := range ordered {
		b.Apply(tx)
	}
}

// Apply folds one transaction into the book. Malformed or incomplete
// transactions are skipped, never fatal: historical brokerage data is
// routinely incomplete and the ledger must keep going.
func (b *LotBook) Apply(tx Transaction) {
	if tx.Type == TxSplit {
		if tx.Symbol != "" && tx.hasSplitRatio() {
			b.split(tx)
		}
		return
	}

	// Without a symbol and a share count there is no lot to touch.
	if tx.Symbol == "" || tx.shares().IsZero() {
		return
	}

	switch tx.Type {
	case TxBuy, TxDrip:
		cost := tx.absAmount().Add(tx.absFees())
		b.acquire(tx, cost.Div(tx.shares()))
	case TxTransferIn:
		b.acquire(tx, transferBasis(tx))
	case TxSell:
		b.dispose(tx, true)
	case TxTransferOut:
		b.dispose(tx, false)
	case TxDividend, TxFee, TxSweepIn, TxSweepOut:
		// No lot impact.
	default:
		b.log.Warn("unhandled transaction type in lot replay",
			zap.Stringer("type", tx.Type), zap.Int64("tx_id", tx.ID))
	}
}

// transferBasis derives the cost basis per share of an incoming
// transfer: the explicit price when present, else the cash amount
// spread over the shares, else zero (custodial moves often carry no
// cash flow).
func transferBasis(tx Transaction) decimal.Decimal {
	if tx.Price.IsPositive() {
		return tx.Price
	}
	if !tx.Amount.IsZero() {
		return tx.absAmount().Div(tx.shares())
	}
	return decimal.Zero
}

func (b *LotBook) acquire(tx Transaction, costPerShare decimal.Decimal) {
	shares := tx.shares()
	lot := &Lot{
		ID:              b.nextLotID,
		Account:         tx.Account,
		Symbol:          tx.Symbol,
		AcquiredDate:    tx.TradeDate,
		SharesAcquired:  shares,
		SharesRemaining: shares,
		CostPerShare:    costPerShare,
		TotalCost:       shares.Mul(costPerShare),
		SourceTxID:      tx.ID,
	}
	b.nextLotID++
	b.lots = append(b.lots, lot)
}

// dispose consumes open lots oldest-acquired-first. SELLs record a
// disposal per lot touched; transfers out only remove shares, since no
// gain is realized by a custodial move.
func (b *LotBook) dispose(tx Transaction, recordDisposals bool) {
	needed := tx.shares()
	proceedsPerShare := decimal.Zero
	if recordDisposals {
		proceedsPerShare = tx.absAmount().Sub(tx.absFees()).Div(needed)
	}

	for _, lot := range b.openLots(tx.Symbol) {
		if !needed.GreaterThan(shareEpsilon) {
			break
		}
		disposed := decimal.Min(lot.SharesRemaining, needed)
		lot.SharesRemaining = lot.SharesRemaining.Sub(disposed)
		needed = needed.Sub(disposed)

		if recordDisposals {
			cost := disposed.Mul(lot.CostPerShare)
			proceeds := disposed.Mul(proceedsPerShare)
			b.disposals = append(b.disposals, Disposal{
				SellTxID:  tx.ID,
				LotID:     lot.ID,
				Symbol:    lot.Symbol,
				Shares:    disposed,
				CostBasis: cost,
				Proceeds:  proceeds,
				Gain:      proceeds.Sub(cost),
			})
		}
	}

	if needed.GreaterThan(shareEpsilon) {
		// Data gap, typically a missing prior transfer-in. The ledger
		// continues; the shortfall surfaces in the numbers.
		b.log.Warn("insufficient shares to dispose",
			zap.Stringer("type", tx.Type),
			zap.String("account", tx.Account),
			zap.String("symbol", tx.Symbol),
			zap.String("short", needed.String()),
		)
	}
}

// split scales every open lot of the symbol: share counts multiply by
// the ratio, per-share cost divides by it. TotalCost is invariant.
func (b *LotBook) split(tx Transaction) {
	ratio := tx.SplitRatio
	for _, lot := range b.lots {
		if lot.Symbol != tx.Symbol || !lot.Open() {
			continue
		}
		lot.SharesAcquired = lot.SharesAcquired.Mul(ratio)
		lot.SharesRemaining = lot.SharesRemaining.Mul(ratio)
		lot.CostPerShare = lot.CostPerShare.Div(ratio)
	}
}

// openLots returns the symbol's open lots ordered oldest-acquired-first,
// ties broken by lot insertion order.
func (b *LotBook) openLots(symbol string) []*Lot {
	var open []*Lot
	for _, lot := range b.lots {
		if lot.Symbol == symbol && lot.Open() {
			open = append(open, lot)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if c := open[i].AcquiredDate.Compare(open[j].AcquiredDate); c != 0 {
			return c < 0
		}
		return open[i].ID < open[j].ID
	})
	return open
}

// OpenLots returns copies of the open lots, optionally filtered by
// symbol (empty string selects all), oldest-acquired-first.
func (b *LotBook) OpenLots(symbol string) []Lot {
	var out []Lot
	for _, lot := range b.allSorted() {
		if lot.Open() && (symbol == "" || lot.Symbol == symbol) {
			out = append(out, *lot)
		}
	}
	return out
}

// Lots returns copies of every lot, open and depleted.
func (b *LotBook) Lots() []Lot {
	out := make([]Lot, 0, len(b.lots))
	for _, lot := range b.allSorted() {
		out = append(out, *lot)
	}
	return out
}

// Disposals returns the realized-gain records, in replay order.
func (b *LotBook) Disposals() []Disposal {
	out := make([]Disposal, len(b.disposals))
	copy(out, b.disposals)
	return out
}

func (b *LotBook) allSorted() []*Lot {
	all := make([]*Lot, len(b.lots))
	copy(all, b.lots)
	sort.SliceStable(all, func(i, j int) bool {
		if c := all[i].AcquiredDate.Compare(all[j].AcquiredDate); c != 0 {
			return c < 0
		}
		return all[i].ID < all[j].ID
	})
	return all
}
