package renderer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/autobasher/portfolio"
)

// Report is the data behind one portfolio performance report.
type Report struct {
	Name       string
	Latest     portfolio.Snapshot
	Stats      portfolio.PerformanceReport
	Allocation map[string]float64
}

const reportTemplate = `# {{.Name}}

| | |
|---|---:|
| Market value | {{usd .Latest.TotalValue}} |
| Net deposits | {{usd .Latest.TotalCost}} |
| Cash | {{usd .Latest.CashBalance}} |
| As of | {{.Latest.Date}} |

## Performance

| Metric | Value |
|---|---:|
| Total return (TWR) | {{optpct .Stats.TotalReturn}} |
| Annualized return | {{optpct .Stats.AnnualizedReturn}} |
| XIRR | {{optpct .Stats.XIRR}} |
| Sharpe ratio | {{optnum .Stats.Sharpe}} |
| Volatility (annual) | {{optpct .Stats.Volatility}} |
| Max drawdown | {{optpct .Stats.MaxDrawdown}} |
`

// RenderReport renders the performance report to markdown.
func RenderReport(r *Report) string {
	out := render("report", reportTemplate, r)
	if len(r.Allocation) > 0 {
		out += "\n## Allocation\n\n" + allocationTable(r.Allocation)
	}
	return out
}

func allocationTable(alloc map[string]float64) string {
	symbols := make([]string, 0, len(alloc))
	for s := range alloc {
		symbols = append(symbols, s)
	}
	// Largest weight first; ties by symbol.
	sort.Slice(symbols, func(i, j int) bool {
		if alloc[symbols[i]] != alloc[symbols[j]] {
			return alloc[symbols[i]] > alloc[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})

	var sb strings.Builder
	sb.WriteString("| Symbol | Weight |\n|---|---:|\n")
	for _, s := range symbols {
		fmt.Fprintf(&sb, "| %s | %.2f%% |\n", s, alloc[s]*100)
	}
	return sb.String()
}

// RenderLots renders an account's open lots as a markdown table.
func RenderLots(account string, lots []portfolio.Lot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Open lots: %s\n\n", account)
	if len(lots) == 0 {
		sb.WriteString("No open lots.\n")
		return sb.String()
	}
	sb.WriteString("| Symbol | Acquired | Shares | Cost/share | Total cost |\n")
	sb.WriteString("|---|---|---:|---:|---:|\n")
	for _, l := range lots {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			l.Symbol, l.AcquiredDate,
			l.SharesRemaining.String(),
			USD(l.CostPerShare.InexactFloat64()),
			USD(l.SharesRemaining.Mul(l.CostPerShare).InexactFloat64()))
	}
	return sb.String()
}

// RenderHistory renders a snapshot series as a markdown table, most
// recent day last.
func RenderHistory(name string, snaps []portfolio.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# History: %s\n\n", name)
	if len(snaps) == 0 {
		sb.WriteString("No snapshots. Run the rebuild first.\n")
		return sb.String()
	}
	sb.WriteString("| Date | Value | Net deposits | Cash | TWR |\n")
	sb.WriteString("|---|---:|---:|---:|---:|\n")
	for _, s := range snaps {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			s.Date, USD(s.TotalValue), USD(s.TotalCost), USD(s.CashBalance), Percent(s.TWR))
	}
	return sb.String()
}
