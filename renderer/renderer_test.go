package renderer

import (
	"strings"
	"testing"

	"github.com/autobasher/portfolio"
	"github.com/autobasher/portfolio/date"
)

func TestUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.56, "$1,234.56"},
		{0, "$0.00"},
		{-20.5, "-$20.50"},
	}
	for _, tc := range tests {
		if got := USD(tc.in); got != tc.want {
			t.Errorf("USD(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(0.1025); got != "+10.25%" {
		t.Errorf("Percent = %q", got)
	}
	if got := Percent(-0.05); got != "-5.00%" {
		t.Errorf("Percent = %q", got)
	}
}

func TestRenderReport(t *testing.T) {
	total := 0.10
	r := &Report{
		Name: "retirement",
		Latest: portfolio.Snapshot{
			Date:       date.MustParse("2024-06-03"),
			TotalValue: 1100,
			TotalCost:  1000,
			TWR:        total,
		},
		Stats:      portfolio.PerformanceReport{TotalReturn: &total},
		Allocation: map[string]float64{"AAPL": 0.6, "VMFXX": 0.4},
	}

	out := RenderReport(r)
	for _, want := range []string{
		"# retirement",
		"$1,100.00",
		"+10.00%",
		"n/a", // metrics without enough data
		"| AAPL | 60.00% |",
		"| VMFXX | 40.00% |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	// Largest weight first.
	if strings.Index(out, "AAPL") > strings.Index(out, "VMFXX") {
		t.Error("allocation not sorted by weight")
	}
}

func TestRenderLotsEmpty(t *testing.T) {
	out := RenderLots("ira", nil)
	if !strings.Contains(out, "No open lots") {
		t.Errorf("empty lots report = %q", out)
	}
}

func TestRenderHistory(t *testing.T) {
	snaps := []portfolio.Snapshot{
		{Date: date.MustParse("2024-01-02"), TotalValue: 1000, TotalCost: 1000},
		{Date: date.MustParse("2024-01-03"), TotalValue: 1100, TotalCost: 1000, TWR: 0.10},
	}
	out := RenderHistory("retirement", snaps)
	if !strings.Contains(out, "| 2024-01-03 | $1,100.00 | $1,000.00 | $0.00 | +10.00% |") {
		t.Errorf("history table malformed:\n%s", out)
	}
}
