package portfolio

import (
	"errors"
	"math"
	"sort"

	"github.com/autobasher/portfolio/date"
)

// CashFlow is one dated flow from the investor's point of view:
// deposits are negative (money leaves the investor), withdrawals and
// the final market value are positive.
type CashFlow struct {
	On     date.Date
	Amount float64
}

// flowNoiseFloor suppresses sub-cent rounding residue in the derived
// deposit series so it does not become phantom XIRR flows.
const flowNoiseFloor = 0.01

var (
	// ErrNoConvergence means the XIRR iteration did not settle on a
	// rate, usually because the flow series has no sign change.
	ErrNoConvergence = errors.New("xirr: no convergence")
	// ErrTooFewFlows means fewer than two cash flows were supplied.
	ErrTooFewFlows = errors.New("xirr: need at least two cash flows")
)

// XIRR computes the annualized internal rate of return of an irregular
// cash-flow series, the rate r at which the sum of
// amount/(1+r)^(days/365) over all flows is zero. Newton's method runs
// first; if it diverges or leaves the bracket, bisection finishes the
// job.
func XIRR(flows []CashFlow) (float64, error) {
	if len(flows) < 2 {
		return 0, ErrTooFewFlows
	}

	ordered := make([]CashFlow, len(flows))
	copy(ordered, flows)
	sortFlows(ordered)

	hasNeg, hasPos := false, false
	for _, f := range ordered {
		if f.Amount < 0 {
			hasNeg = true
		}
		if f.Amount > 0 {
			hasPos = true
		}
	}
	if !hasNeg || !hasPos {
		return 0, ErrNoConvergence
	}

	t0 := ordered[0].On
	npv := func(r float64) (v, dv float64) {
		for _, f := range ordered {
			years := float64(f.On.Sub(t0)) / 365.0
			if years == 0 {
				v += f.Amount
				continue
			}
			g := math.Pow(1+r, years)
			v += f.Amount / g
			dv -= years * f.Amount / (g * (1 + r))
		}
		return v, dv
	}

	const (
		tol     = 1e-9
		maxIter = 100
	)

	// Newton from a conventional 10% guess.
	r := 0.1
	for i := 0; i < maxIter; i++ {
		v, dv := npv(r)
		if math.Abs(v) < tol {
			return r, nil
		}
		if dv == 0 || math.IsNaN(dv) || math.IsInf(dv, 0) {
			break
		}
		next := r - v/dv
		if next <= -1 || math.IsNaN(next) || math.IsInf(next, 0) {
			break
		}
		if math.Abs(next-r) < tol {
			return next, nil
		}
		r = next
	}

	// Bisection over (-1, 10].
	lo, hi := -1.0+1e-10, 10.0
	vLo, _ := npv(lo)
	vHi, _ := npv(hi)
	if vLo*vHi > 0 {
		return 0, ErrNoConvergence
	}
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		vMid, _ := npv(mid)
		if math.Abs(vMid) < tol || hi-lo < tol {
			return mid, nil
		}
		if vLo*vMid < 0 {
			hi = mid
		} else {
			lo, vLo = mid, vMid
		}
	}
	return (lo + hi) / 2, nil
}

// PortfolioXIRR derives the flow series from a snapshot history and
// computes its XIRR. Deposits are recovered as day-over-day changes in
// net deposits, sign-inverted, and the final snapshot's market value
// closes the series as a terminal inflow.
func PortfolioXIRR(snaps []Snapshot) (float64, error) {
	flows := depositFlows(snaps, 0)
	return xirrWithTerminal(snaps, flows)
}

// SubPeriodXIRR computes the XIRR of the tail of a snapshot history
// starting at the first snapshot of the sub-series. The holdings value
// at the start is treated as an opening purchase, so only performance
// inside the window counts.
func SubPeriodXIRR(snaps []Snapshot) (float64, error) {
	if len(snaps) < 2 {
		return 0, ErrTooFewFlows
	}
	flows := []CashFlow{{On: snaps[0].Date, Amount: -snaps[0].TotalValue}}
	flows = append(flows, depositFlows(snaps, snaps[0].TotalCost)...)
	return xirrWithTerminal(snaps, flows)
}

// depositFlows converts the running net-deposit series into dated
// flows, skipping changes under the noise floor. prevDeposits seeds the
// running value so a sub-period does not re-count deposits made before
// its window.
func depositFlows(snaps []Snapshot, prevDeposits float64) []CashFlow {
	var flows []CashFlow
	prev := prevDeposits
	for _, s := range snaps {
		delta := s.TotalCost - prev
		if math.Abs(delta) > flowNoiseFloor {
			flows = append(flows, CashFlow{On: s.Date, Amount: -delta})
		}
		prev = s.TotalCost
	}
	return flows
}

func xirrWithTerminal(snaps []Snapshot, flows []CashFlow) (float64, error) {
	if len(snaps) == 0 {
		return 0, ErrTooFewFlows
	}
	last := snaps[len(snaps)-1]
	if last.TotalValue > 0 {
		flows = append(flows, CashFlow{On: last.Date, Amount: last.TotalValue})
	}
	return XIRR(flows)
}

func sortFlows(flows []CashFlow) {
	sort.SliceStable(flows, func(i, j int) bool { return flows[i].On.Before(flows[j].On) })
}
