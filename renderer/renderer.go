// Package renderer turns portfolio data into markdown reports for the
// terminal.
package renderer

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Rhymond/go-money"
)

// USD formats a dollar value for display, e.g. "$1,234.56".
func USD(v float64) string {
	return money.NewFromFloat(v, money.USD).Display()
}

// Percent formats a fraction as a signed percentage, e.g. "+10.25%".
func Percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

// maybePercent renders an optional statistic, "n/a" when undefined.
func maybePercent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return Percent(*v)
}

func maybeNumber(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

var funcs = template.FuncMap{
	"usd":     USD,
	"percent": Percent,
	"optpct":  maybePercent,
	"optnum":  maybeNumber,
}

func render(name, text string, data any) string {
	t := template.Must(template.New(name).Funcs(funcs).Parse(text))
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		// Templates are compile-time constants; an execution failure is
		// a programming error.
		panic(err)
	}
	return sb.String()
}
