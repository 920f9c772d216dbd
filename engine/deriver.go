package engine

import "github.com/fenilmodi00/valuation-backend/models"

// DerivedFields holds the intermediate fundamentals computed from raw columns.
type DerivedFields struct {
	EnterpriseValue *float64
	EBITDA          *float64
	EVToEBITDA      *float64
}

// Derive computes enterprise value and the EV/EBITDA ratio.
//
// EBITDA is taken directly from operating profit. Any missing input, or an
// operating profit of zero, leaves the dependent fields nil.
func Derive(r models.CompanyRecord) DerivedFields {
	var d DerivedFields

	if r.OperatingProfit != nil {
		d.EBITDA = finite(*r.OperatingProfit)
	}

	if all(r.NumberOfEquityShares, r.CurrentPrice, r.Debt, r.CashEquivalents) {
		shares, price := *r.NumberOfEquityShares, *r.CurrentPrice
		d.EnterpriseValue = finite(shares*price + *r.Debt - *r.CashEquivalents)
	}

	if d.EnterpriseValue != nil && d.EBITDA != nil {
		if ratio, err := div(*d.EnterpriseValue, *d.EBITDA); err == nil {
			d.EVToEBITDA = &ratio
		}
	}

	return d
}
