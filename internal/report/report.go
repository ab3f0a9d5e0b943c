// Package report renders the fixed-width summary report text.
package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	descWidth = 35
	numWidth  = 10
)

// Line is one rendered transaction row.
type Line struct {
	Description string
	Date        string // empty when the record has no date
	Expense     bool
	Amount      decimal.Decimal
}

// Summary holds everything needed to render one report.
type Summary struct {
	Title        string
	Windowed     bool // a date window applied; empty results get a note
	Lines        []Line
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
}

// Render produces the report text: a header, one row per transaction, and
// the income/expense/net totals with the net carrying an explicit sign.
func (s Summary) Render() string {
	rule := strings.Repeat("-", descWidth+numWidth) + "\n"

	var b strings.Builder
	b.WriteString(rule)
	b.WriteString(s.Title + "\n")
	b.WriteString(rule)

	for _, l := range s.Lines {
		b.WriteString(l.render())
	}
	if s.Windowed && len(s.Lines) == 0 {
		b.WriteString("No transactions found in this date range.\n")
	}

	b.WriteString(rule)
	fmt.Fprintf(&b, "%s| $%s\n", pad("Total Income"), s.TotalIncome.StringFixed(2))
	fmt.Fprintf(&b, "%s| $%s\n", pad("Total Expense"), s.TotalExpense.StringFixed(2))
	b.WriteString(pad("Net Income"))

	net := s.TotalIncome.Sub(s.TotalExpense)
	switch {
	case net.IsPositive():
		fmt.Fprintf(&b, "| +$%s\n", net.StringFixed(2))
	case net.IsNegative():
		fmt.Fprintf(&b, "| -$%s\n", net.Neg().StringFixed(2))
	default:
		b.WriteString("| $0\n")
	}

	b.WriteString(rule)
	return b.String()
}

func (l Line) render() string {
	desc := l.Description
	if l.Date != "" {
		desc = fmt.Sprintf("%s (%s)", desc, l.Date)
	}
	if len(desc) > descWidth-2 {
		desc = desc[:descWidth-5] + "..."
	}
	sign := "+"
	if l.Expense {
		sign = "-"
	}
	return fmt.Sprintf("%s| %s$%s\n", pad(desc), sign, l.Amount.String())
}

func pad(s string) string {
	if len(s) >= descWidth {
		return s
	}
	return s + strings.Repeat(" ", descWidth-len(s))
}
