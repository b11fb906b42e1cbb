package portfolio

import (
	"sort"

	"github.com/autobasher/portfolio/date"
)

// PricePoint is one (date, close) observation for a symbol, as returned
// by a price feed. AdjClose carries the feed's own adjusted series when
// it reports one separately.
type PricePoint struct {
	On       date.Date
	Close    float64
	AdjClose float64
}

// PriceSet is the in-memory price cache the valuation core reads from:
// per symbol, a sorted series of daily closing prices. It is populated
// externally (store, feed) before a build; the core never fetches.
type PriceSet struct {
	bySymbol map[string]*date.History[float64]
}

// NewPriceSet returns an empty price cache.
func NewPriceSet() *PriceSet {
	return &PriceSet{bySymbol: make(map[string]*date.History[float64])}
}

// Add records a closing price. A price already present for the same
// (symbol, date) is overwritten.
func (p *PriceSet) Add(symbol string, on date.Date, close float64) {
	h, ok := p.bySymbol[symbol]
	if !ok {
		h = &date.History[float64]{}
		p.bySymbol[symbol] = h
	}
	h.Append(on, close)
}

// Get returns the close recorded exactly on the given date.
func (p *PriceSet) Get(symbol string, on date.Date) (float64, bool) {
	h, ok := p.bySymbol[symbol]
	if !ok {
		return 0, false
	}
	return h.Get(on)
}

// AsOf returns the close on the given date or the most recent one
// before it.
func (p *PriceSet) AsOf(symbol string, on date.Date) (float64, bool) {
	h, ok := p.bySymbol[symbol]
	if !ok {
		return 0, false
	}
	return h.ValueAsOf(on)
}

// Latest returns the most recent close for a symbol and its date.
func (p *PriceSet) Latest(symbol string) (close float64, on date.Date, ok bool) {
	h, found := p.bySymbol[symbol]
	if !found || h.Len() == 0 {
		return 0, date.Date{}, false
	}
	on, close, _ = h.Latest()
	return close, on, true
}

// Range returns the earliest and latest cached dates for a symbol.
func (p *PriceSet) Range(symbol string) (min, max date.Date, ok bool) {
	h, found := p.bySymbol[symbol]
	if !found || h.Len() == 0 {
		return date.Date{}, date.Date{}, false
	}
	min, _, _ = h.First()
	max, _, _ = h.Latest()
	return min, max, true
}

// Symbols returns the cached symbols in lexical order.
func (p *PriceSet) Symbols() []string {
	out := make([]string, 0, len(p.bySymbol))
	for s := range p.bySymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FetchCache tracks, per symbol, the latest date for which a feed fetch
// has already been attempted, so trailing weekends and holidays (for
// which the feed returns nothing) are not re-fetched on every build.
//
// It is an explicit object scoped to one build session, passed into
// price-syncing calls, so state never leaks across portfolios or tests.
type FetchCache struct {
	highWater map[string]date.Date
}

// NewFetchCache returns an empty fetch cache.
func NewFetchCache() *FetchCache {
	return &FetchCache{highWater: make(map[string]date.Date)}
}

// NeedsFetch decides whether the [start, end] range requires a feed
// call, given what the price store already holds for the symbol
// (cachedMin/cachedMax, valid when haveCached) and what this session
// has already attempted.
func (c *FetchCache) NeedsFetch(symbol string, cachedMin, cachedMax date.Date, haveCached bool, start, end date.Date) bool {
	hw, attempted := c.highWater[symbol]
	switch {
	case !haveCached && !attempted:
		return true
	case haveCached:
		effectiveMax := cachedMax
		if attempted {
			effectiveMax = date.Max(cachedMax, hw)
		}
		return start.Before(cachedMin) || end.After(effectiveMax)
	default: // not cached, but attempted
		return end.After(hw)
	}
}

// MarkAttempted records that a fetch through 'end' was attempted,
// whether or not the feed returned rows.
func (c *FetchCache) MarkAttempted(symbol string, end date.Date) {
	if hw, ok := c.highWater[symbol]; ok {
		c.highWater[symbol] = date.Max(hw, end)
		return
	}
	c.highWater[symbol] = end
}
