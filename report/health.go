package report

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/tabular"
	"github.com/shopspring/decimal"
)

// Columns read from CompanyRecord.Extras for the health summary.
const (
	colPromoterHolding       = "Promoter holding"
	colChangePromoter        = "Change in promoter holding"
	colChangeFII             = "Change in FII holding"
	colChangeDII             = "Change in DII holding"
	colCashConversionCycle   = "Cash Conversion Cycle"
	colReturnOnEquity        = "Return on equity"
	colReturnOnCapital       = "Return on capital employed"
	colReturnOnInvested      = "Return on invested capital"
	colQoQSales              = "QoQ Sales"
	colQoQProfits            = "QoQ Profits"
	colNetProfitLatest       = "Net Profit latest quarter"
	colNetProfitThreeQtrBack = "Net profit 3quarters back"
	colOPM                   = "OPM"
	colYoYSalesGrowth        = "YOY Quarterly sales growth"
	colYoYProfitGrowth       = "YOY Quarterly profit growth"
)

// Amounts in a screener export are in crores of rupees.
const currencyCode = money.INR

// Metric is one labelled line of a company health summary.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// HealthSummary is the quick look card shown for a single company.
type HealthSummary struct {
	Name    string   `json:"name"`
	Metrics []Metric `json:"metrics"`
}

// Health builds the summary card for r. Columns missing from the source
// file render as Missing.
func Health(r models.CompanyRecord) HealthSummary {
	extra := func(col string) *float64 {
		return tabular.ParseNumber(r.Extras[col])
	}

	sme := Missing
	if r.IsSME != nil {
		sme = "No"
		if *r.IsSME {
			sme = "Yes"
		}
	}

	return HealthSummary{
		Name: r.Name,
		Metrics: []Metric{
			{"SME", sme},
			{"Market Capitalisation", crores(r.MarketCapitalization)},
			{"Promoters Holding%", percent(extra(colPromoterHolding))},
			{"Change in PM", plain(extra(colChangePromoter))},
			{"Change in FII Hold%", percent(extra(colChangeFII))},
			{"Change in DII Hold%", percent(extra(colChangeDII))},
			{"Cash Conversion Cycle", plain(extra(colCashConversionCycle))},
			{"Price to Book Value%", percent(r.PriceToBook)},
			{"ROE%", percent(extra(colReturnOnEquity))},
			{"ROCE%", percent(extra(colReturnOnCapital))},
			{"ROIC%", percent(extra(colReturnOnInvested))},
			{"QOQ Sales%", percent(extra(colQoQSales))},
			{"QOQ Profit%", percent(extra(colQoQProfits))},
			{"Net Profit (Latest Quarter)", crores(extra(colNetProfitLatest))},
			{"Net Profit (3 Quarters Back)", crores(extra(colNetProfitThreeQtrBack))},
			{"OPM%", percent(extra(colOPM))},
			{"YOY Sales%", percent(extra(colYoYSalesGrowth))},
			{"YOY Profit%", percent(extra(colYoYProfitGrowth))},
		},
	}
}

// Markdown renders the summary as a two column table.
func (h HealthSummary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", h.Name)
	writeRow(&b, []string{"Metric", "Value"})
	writeDivider(&b, 2)
	for _, m := range h.Metrics {
		writeRow(&b, []string{m.Label, m.Value})
	}
	return b.String()
}

// Value returns the value of the metric with the given label.
func (h HealthSummary) Value(label string) (string, bool) {
	for _, m := range h.Metrics {
		if m.Label == label {
			return m.Value, true
		}
	}
	return "", false
}

// FormatINR renders an amount of rupees with currency symbol and grouping.
func FormatINR(amount float64) string {
	cur := money.GetCurrency(currencyCode)
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), currencyCode).Display()
}

func crores(v *float64) string {
	if v == nil {
		return Missing
	}
	return FormatINR(*v) + " Cr"
}

func percent(v *float64) string {
	if v == nil {
		return Missing
	}
	return tabular.FormatNumber(v) + "%"
}

func plain(v *float64) string {
	if v == nil {
		return Missing
	}
	return tabular.FormatNumber(v)
}
