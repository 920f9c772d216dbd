package models

// CompanyRecord is one row of a fundamentals universe export.
// Numeric fields are nil when the source cell was empty or unparsable.
type CompanyRecord struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
	IsSME *bool `json:"is_sme"`

	NumberOfEquityShares     *float64 `json:"number_of_equity_shares"`
	CurrentPrice             *float64 `json:"current_price"`
	Debt                     *float64 `json:"debt"`
	CashEquivalents          *float64 `json:"cash_equivalents"`
	OperatingProfit          *float64 `json:"operating_profit"`
	OperatingProfitGrowthPct *float64 `json:"operating_profit_growth_pct"`
	Sales                    *float64 `json:"sales"`
	SalesGrowthPct           *float64 `json:"sales_growth_pct"`
	ProfitAfterTax           *float64 `json:"profit_after_tax"`
	ProfitGrowthPct          *float64 `json:"profit_growth_pct"`
	PriceToEarnings          *float64 `json:"price_to_earnings"`
	IndustryPE               *float64 `json:"industry_pe"`
	PriceToBook              *float64 `json:"price_to_book"`
	IndustryPBV              *float64 `json:"industry_pbv"`
	BookValue                *float64 `json:"book_value"`
	BookValuePriorYear       *float64 `json:"book_value_prior_year"`
	MarketCapitalization     *float64 `json:"market_capitalization"`

	// Extras keeps every other column of the source row verbatim,
	// keyed by header. Only the presentation layer reads it.
	Extras map[string]string `json:"extras,omitempty"`
}

// Segment returns "sme", "non-sme" or "" when the flag is unknown.
func (r CompanyRecord) Segment() string {
	if r.IsSME == nil {
		return ""
	}
	if *r.IsSME {
		return SegmentSME
	}
	return SegmentNonSME
}

const (
	SegmentSME    = "sme"
	SegmentNonSME = "non-sme"
)

// Float returns a pointer to v. Handy for building records in code and tests.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
