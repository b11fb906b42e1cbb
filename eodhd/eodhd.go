// Package eodhd fetches daily closes, split histories, and live quotes
// from the EODHD market data API (https://eodhd.com).
package eodhd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

const defaultBaseURL = "https://eodhd.com/api"

// Client talks to the EODHD API. Historical endpoints go through a
// disk cache whose entries expire daily, so repeated rebuilds within a
// day never re-download the same series; live quotes bypass the cache.
type Client struct {
	apiKey  string
	baseURL string
	daily   *http.Client
	live    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL redirects the client to a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces both underlying HTTP clients, disabling the
// disk cache.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.daily, c.live = h, h }
}

// New creates a client authenticated with the given API token.
func New(apiKey string, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		daily:   newDailyCachingClient(log),
		live:    new(http.Client),
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DailyCloses returns the ticker's end-of-day closes over [from, to].
// The feed restates closes retroactively after splits; the returned
// values are whatever the feed currently reports.
func (c *Client) DailyCloses(ctx context.Context, symbol string, from, to date.Date) ([]portfolio.PricePoint, error) {
	addr := fmt.Sprintf("%s/eod/%s?fmt=json&api_token=%s&from=%s&to=%s",
		c.baseURL, symbol, c.apiKey, from, to)

	type row struct {
		Date     string  `json:"date"`
		Close    float64 `json:"close"`
		AdjClose float64 `json:"adjusted_close"`
	}
	content := make([]row, 0)
	if err := jwget(ctx, c.daily, addr, &content); err != nil {
		return nil, fmt.Errorf("eod %s: %w", symbol, err)
	}

	out := make([]portfolio.PricePoint, 0, len(content))
	for _, r := range content {
		d, err := date.Parse(r.Date)
		if err != nil {
			return nil, fmt.Errorf("eod %s: bad date %q: %w", symbol, r.Date, err)
		}
		out = append(out, portfolio.PricePoint{On: d, Close: r.Close, AdjClose: r.AdjClose})
	}
	return out, nil
}

// Split is one split event as reported by the feed.
type Split struct {
	On    date.Date
	Ratio decimal.Decimal // new shares per old share
}

// Splits returns the ticker's split history over [from, to]. The feed
// reports ratios as "new/old" strings like "10.000000/1.000000".
func (c *Client) Splits(ctx context.Context, symbol string, from, to date.Date) ([]Split, error) {
	addr := fmt.Sprintf("%s/splits/%s?fmt=json&api_token=%s&from=%s&to=%s",
		c.baseURL, symbol, c.apiKey, from, to)

	type row struct {
		Date  string `json:"date"`
		Split string `json:"split"`
	}
	content := make([]row, 0)
	if err := jwget(ctx, c.daily, addr, &content); err != nil {
		return nil, fmt.Errorf("splits %s: %w", symbol, err)
	}

	out := make([]Split, 0, len(content))
	for _, r := range content {
		d, err := date.Parse(r.Date)
		if err != nil {
			return nil, fmt.Errorf("splits %s: bad date %q: %w", symbol, r.Date, err)
		}
		ratio, err := parseSplitRatio(r.Split)
		if err != nil {
			return nil, fmt.Errorf("splits %s: %w", symbol, err)
		}
		out = append(out, Split{On: d, Ratio: ratio})
	}
	return out, nil
}

// parseSplitRatio converts the feed's "new/old" string into a single
// multiplier.
func parseSplitRatio(s string) (decimal.Decimal, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return decimal.Zero, fmt.Errorf("invalid split format %q", s)
	}
	num, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numerator in split %q: %w", s, err)
	}
	den, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid denominator in split %q: %w", s, err)
	}
	if den.IsZero() {
		return decimal.Zero, fmt.Errorf("zero denominator in split %q", s)
	}
	return num.Div(den), nil
}

// Live returns the ticker's latest intraday price. The endpoint's
// shape varies (single object or one-element list), so the value is
// extracted by path rather than a fixed struct.
func (c *Client) Live(ctx context.Context, symbol string) (float64, error) {
	addr := fmt.Sprintf("%s/real-time/%s?fmt=json&api_token=%s", c.baseURL, symbol, c.apiKey)

	var jobj any
	if err := jwget(ctx, c.live, addr, &jobj); err != nil {
		return 0, fmt.Errorf("real-time %s: %w", symbol, err)
	}

	const path = "$.close"
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, fmt.Errorf("real-time %s: %q: %w", symbol, path, err)
	}
	// jsonpath may hand back a one-element list instead of the value.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	val, ok := jval.(float64)
	if !ok {
		return 0, fmt.Errorf("real-time %s: %q is not a number: %v", symbol, path, jval)
	}
	return val, nil
}
