package portfolio

import (
	"errors"
	"math"
	"testing"

	"github.com/autobasher/portfolio/date"
)

func TestXIRRSingleDeposit(t *testing.T) {
	// 1000 in, 1100 out exactly one 365-day year later: 10%.
	flows := []CashFlow{
		{On: date.MustParse("2023-01-01"), Amount: -1000},
		{On: date.MustParse("2024-01-01"), Amount: 1100},
	}
	r, err := XIRR(flows)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "xirr", r, 0.10, 1e-6)
}

func TestXIRRMultipleFlows(t *testing.T) {
	flows := []CashFlow{
		{On: date.MustParse("2023-01-01"), Amount: -1000},
		{On: date.MustParse("2023-07-01"), Amount: -500},
		{On: date.MustParse("2024-01-01"), Amount: 1650},
	}
	r, err := XIRR(flows)
	if err != nil {
		t.Fatal(err)
	}
	// Sanity envelope: a 10% gain on 1500 with the second deposit held
	// only half the year must land above 10%.
	if r < 0.10 || r > 0.20 {
		t.Errorf("xirr = %v, want within (0.10, 0.20)", r)
	}
	// The rate must actually zero the NPV.
	npv := 0.0
	t0 := flows[0].On
	for _, f := range flows {
		years := float64(f.On.Sub(t0)) / 365.0
		npv += f.Amount / math.Pow(1+r, years)
	}
	approx(t, "npv at solution", npv, 0, 1e-6)
}

func TestXIRRNegativeReturn(t *testing.T) {
	flows := []CashFlow{
		{On: date.MustParse("2023-01-01"), Amount: -1000},
		{On: date.MustParse("2024-01-01"), Amount: 800},
	}
	r, err := XIRR(flows)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "xirr", r, -0.20, 1e-6)
}

func TestXIRRDegenerateInput(t *testing.T) {
	if _, err := XIRR([]CashFlow{{On: date.MustParse("2023-01-01"), Amount: -1000}}); !errors.Is(err, ErrTooFewFlows) {
		t.Errorf("single flow: err = %v, want ErrTooFewFlows", err)
	}
	allOut := []CashFlow{
		{On: date.MustParse("2023-01-01"), Amount: -1000},
		{On: date.MustParse("2024-01-01"), Amount: -500},
	}
	if _, err := XIRR(allOut); !errors.Is(err, ErrNoConvergence) {
		t.Errorf("no sign change: err = %v, want ErrNoConvergence", err)
	}
}

func TestPortfolioXIRRFromSnapshots(t *testing.T) {
	start := date.MustParse("2023-01-01")
	end := date.MustParse("2024-01-01")

	snaps := make([]Snapshot, 0, end.Sub(start)+1)
	for d := range date.Days(start, end) {
		frac := float64(d.Sub(start)) / float64(end.Sub(start))
		snaps = append(snaps, Snapshot{
			Date:       d,
			TotalValue: 1000 + 100*frac,
			TotalCost:  1000,
		})
	}

	r, err := PortfolioXIRR(snaps)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "portfolio xirr", r, 0.10, 0.02)
}

func TestPortfolioXIRRIgnoresNoise(t *testing.T) {
	// Sub-cent wobble in net deposits must not create phantom flows.
	snaps := []Snapshot{
		{Date: date.MustParse("2023-01-01"), TotalValue: 1000, TotalCost: 1000},
		{Date: date.MustParse("2023-07-01"), TotalValue: 1050, TotalCost: 1000.004},
		{Date: date.MustParse("2024-01-01"), TotalValue: 1100, TotalCost: 1000.004},
	}
	r, err := PortfolioXIRR(snaps)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "xirr with noise", r, 0.10, 1e-3)
}

func TestSubPeriodXIRR(t *testing.T) {
	// Window opens with 2000 of holdings built from earlier deposits;
	// only the in-window appreciation counts.
	snaps := []Snapshot{
		{Date: date.MustParse("2023-01-01"), TotalValue: 2000, TotalCost: 1500},
		{Date: date.MustParse("2024-01-01"), TotalValue: 2200, TotalCost: 1500},
	}
	r, err := SubPeriodXIRR(snaps)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "sub-period xirr", r, 0.10, 1e-6)
}
