package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// numbers formats counts and wages with thousands separators
var numbers = message.NewPrinter(language.English)

func formatCount(n int64) string {
	return numbers.Sprintf("%d", n)
}

func formatWage(v float64) string {
	if v == 0 {
		return "-"
	}
	return numbers.Sprintf("$%.0f", v)
}

func formatPercent(v float64) string {
	return numbers.Sprintf("%.1f%%", v)
}

func formatGrowth(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return numbers.Sprintf("%+.1f%%", v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	return t
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
}

func itoa(n int) string { return strconv.Itoa(n) }
