// Package report renders valuation results for people: markdown tables,
// HTML pages and terminal output.
package report

import (
	"fmt"
	"strings"

	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/tabular"
)

// Missing is printed for any value that is absent.
const Missing = "-"

var leaderboardHeader = []string{"#", "Name", "Gain%", "Current Price", "Final expected price"}

// Leaderboard renders rows in the order given as a markdown table under title.
func Leaderboard(title string, rows []models.ValuedRecord) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "## %s\n\n", title)
	}
	if len(rows) == 0 {
		b.WriteString("_No companies._\n")
		return b.String()
	}

	writeRow(&b, leaderboardHeader)
	writeDivider(&b, len(leaderboardHeader))
	for i, r := range rows {
		writeRow(&b, []string{
			fmt.Sprintf("%d", i+1),
			r.Name,
			number(r.GainPct),
			number(r.CurrentPrice),
			number(r.FinalExpectedPrice),
		})
	}
	return b.String()
}

// LeaderboardSet renders the non-SME and SME leaderboards of a valued
// universe as one document. A nil screen leaves that segment unscreened.
func LeaderboardSet(title string, rows []models.ValuedRecord, limit int, nonSMEScreen, smeScreen *engine.ScreenThresholds) string {
	if limit <= 0 {
		limit = engine.DefaultLeaderboardSize
	}

	nonSME := engine.LeaderboardOptions{Segment: models.SegmentNonSME, Limit: limit, Screen: nonSMEScreen}
	sme := engine.LeaderboardOptions{Segment: models.SegmentSME, Limit: limit, Screen: smeScreen}

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	b.WriteString(Leaderboard(fmt.Sprintf("Top %d Non-SME Companies", limit), engine.Leaderboard(rows, nonSME)))
	b.WriteString("\n")
	b.WriteString(Leaderboard(fmt.Sprintf("Top %d SME Companies", limit), engine.Leaderboard(rows, sme)))
	return b.String()
}

// PortfolioTable renders merged portfolio rows as a markdown table.
func PortfolioTable(rows []models.PortfolioRow) string {
	var b strings.Builder
	writeRow(&b, tabular.PortfolioColumns)
	writeDivider(&b, len(tabular.PortfolioColumns))
	for _, r := range rows {
		verdict := Missing
		if r.Recommendation != nil {
			verdict = string(*r.Recommendation)
		}
		writeRow(&b, []string{
			r.InstrumentCode,
			number(r.Quantity),
			number(r.AverageCost),
			number(r.LastTradedPrice),
			number(r.PnLPct),
			number(r.ReferenceCostBasis),
			number(r.FinalExpectedPrice),
			verdict,
		})
	}
	return b.String()
}

func number(v *float64) string {
	if v == nil {
		return Missing
	}
	return tabular.FormatNumber(v)
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func writeDivider(b *strings.Builder, n int) {
	b.WriteString("|")
	for i := 0; i < n; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
}

func escapeCell(c string) string {
	c = strings.ReplaceAll(c, "\n", " ")
	return strings.ReplaceAll(c, "|", `\|`)
}
