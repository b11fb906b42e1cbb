// Package portfolio implements the accounting core of a personal
// brokerage tracker. It replays an immutable transaction history into
// FIFO tax lots with cost basis tracking, reconstructs daily portfolio
// valuations against historical close prices, and derives performance
// metrics (time-weighted return, money-weighted return, risk
// statistics) from the resulting snapshot series.
//
// The core functionalities include:
//   - Transaction Model: a closed set of typed transaction events
//     (buys, sells, dividends, splits, transfers, fees, reinvestments,
//     and settlement-fund sweeps) replayed in deterministic
//     (trade date, insertion id) order.
//   - FIFO Lot Engine: a stateless replay that produces open lots and
//     realized-gain disposal records, first-in-first-out.
//   - Split Adjustment: a per-symbol step function converting the
//     split-adjusted close series of external price feeds back into the
//     price that actually traded on each historical date.
//   - Daily Snapshots: a day-by-day valuation that separates external
//     cash flows from investment gains and chains a time-weighted
//     return series.
//   - Performance Metrics: XIRR over irregular dates, annualized TWR,
//     Sharpe ratio, drawdown, volatility, and allocation breakdowns.
//
// The core is single-threaded and operates on data already materialized
// in memory; persistence and price fetching live in the store, eodhd,
// and poller packages and treat this package as the single source of
// accounting truth. Malformed historical input never raises: data gaps
// are logged and absorbed so a valuation is always produced.
package portfolio
