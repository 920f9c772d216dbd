package engine

import "github.com/fenilmodi00/valuation-backend/models"

// Scenario multipliers and weights. These constants are product decisions
// and must not be tuned.
var (
	evEBITDAGrowthMultipliers = [...]float64{1.0, 0.8, 0.7, 0.6}
)

const (
	revenueReducedGrowthFactor = 0.9

	peReducedGrowthFactor = 0.7
	peOwnWeight           = 0.2
	peIndustryWeight      = 0.3

	pbReducedGrowthFactor = 0.8
	pbOwnWeight           = 0.3
	pbIndustryWeight      = 0.2

	blendWeight = 0.25
)

// ValueByEVEBITDA projects operating profit under four growth scenarios,
// applies the current EV/EBITDA multiple, removes debt and averages the
// per-share equity values of the scenarios that could be computed.
func ValueByEVEBITDA(r models.CompanyRecord, d DerivedFields) *float64 {
	if !all(d.EBITDA, d.EVToEBITDA, r.OperatingProfitGrowthPct, r.Debt, r.NumberOfEquityShares) {
		return nil
	}
	shares, err := shareCount(*r.NumberOfEquityShares)
	if err != nil {
		return nil
	}

	var sum float64
	var included int
	for _, m := range evEBITDAGrowthMultipliers {
		growth := (*r.OperatingProfitGrowthPct / 100) * m
		projectedEV := *d.EBITDA * (1 + growth) * *d.EVToEBITDA
		perShare, err := div(projectedEV-*r.Debt, shares)
		if err != nil {
			continue
		}
		sum += perShare
		included++
	}

	if included == 0 {
		return nil
	}
	return finite(sum / float64(included))
}

// ValueByRevenue projects sales under the reported growth and a damped
// growth, values them at the current market-cap-to-sales multiple and
// averages the two per-share results.
func ValueByRevenue(r models.CompanyRecord) *float64 {
	if !all(r.NumberOfEquityShares, r.CurrentPrice, r.Sales, r.SalesGrowthPct) {
		return nil
	}
	shares, err := shareCount(*r.NumberOfEquityShares)
	if err != nil {
		return nil
	}
	sales := *r.Sales

	revenueMultiple, err := div(shares*(*r.CurrentPrice), sales)
	if err != nil {
		return nil
	}

	growthA := *r.SalesGrowthPct / 100
	growthB := growthA * revenueReducedGrowthFactor

	var sum float64
	for _, g := range [...]float64{growthA, growthB} {
		projectedMarketCap := sales * (1 + g) * revenueMultiple
		perShare, err := div(projectedMarketCap, shares)
		if err != nil {
			return nil
		}
		sum += perShare
	}
	return finite(sum / 2)
}

// ValueByPE projects profit after tax at full and damped growth, values it at
// the company's own and the industry P/E, and weights the industry scenarios
// more heavily. Missing inputs fall back to neutral defaults; only a reported
// share count that is zero or negative makes the value absent.
func ValueByPE(r models.CompanyRecord) *float64 {
	pat := orDefault(r.ProfitAfterTax, 1)
	growth := orDefault(r.ProfitGrowthPct, 0) / 100
	ownPE := floorOne(r.PriceToEarnings)
	industryPE := floorOne(r.IndustryPE)

	shares, err := shareCount(orDefault(r.NumberOfEquityShares, 1))
	if err != nil {
		return nil
	}

	scenario := func(g, multiple float64) (float64, error) {
		return div(pat*(1+g)*multiple, shares)
	}

	reduced := growth * peReducedGrowthFactor
	a, errA := scenario(growth, ownPE)
	b, errB := scenario(reduced, ownPE)
	c, errC := scenario(growth, industryPE)
	d, errD := scenario(reduced, industryPE)
	if errA != nil || errB != nil || errC != nil || errD != nil {
		return nil
	}

	return finite(peOwnWeight*a + peOwnWeight*b + peIndustryWeight*c + peIndustryWeight*d)
}

// ValueByPB compounds book value growth over two periods, projects book value
// at full and damped growth and values it at the own and industry P/B.
//
// Every input is floored at 1. The returned flag is true when any of the four
// inputs ends up exactly 1, which marks the estimate as low confidence.
func ValueByPB(r models.CompanyRecord) (*float64, bool) {
	ownPB := floorOne(r.PriceToBook)
	industryPB := floorOne(r.IndustryPBV)
	priorBV := floorOne(r.BookValuePriorYear)
	bv := floorOne(r.BookValue)

	defaulted := ownPB == 1 || industryPB == 1 || priorBV == 1 || bv == 1

	ratio, err := div(bv, priorBV)
	if err != nil {
		return nil, defaulted
	}
	root, err := sqrt(ratio)
	if err != nil {
		return nil, defaulted
	}

	growth := (root - 1) * 100
	reduced := growth * pbReducedGrowthFactor

	projected := func(g, multiple float64) float64 {
		return bv * (1 + g/100) * multiple
	}

	total := pbOwnWeight*projected(growth, ownPB) +
		pbOwnWeight*projected(reduced, ownPB) +
		pbIndustryWeight*projected(growth, industryPB) +
		pbIndustryWeight*projected(reduced, industryPB)

	return finite(total), defaulted
}

// Blend averages the four method values into a final expected price and
// computes the gain against the current price. Any absent method value makes
// both results absent. A missing or zero current price only drops the gain.
func Blend(currentPrice *float64, values [4]*float64) (final, gain *float64) {
	var sum float64
	for _, v := range values {
		if v == nil {
			return nil, nil
		}
		sum += *v
	}

	final = finite(blendWeight * sum)
	if final == nil || currentPrice == nil {
		return final, nil
	}

	ratio, err := div(*final-*currentPrice, *currentPrice)
	if err != nil {
		return final, nil
	}
	return final, finite(ratio * 100)
}

// Evaluate runs the deriver and all four methods on one record.
func Evaluate(r models.CompanyRecord) models.ValuedRecord {
	d := Derive(r)

	v := models.ValuedRecord{
		CompanyRecord:   r,
		EnterpriseValue: d.EnterpriseValue,
		EBITDA:          d.EBITDA,
		EVToEBITDA:      d.EVToEBITDA,
		ValueEVEBITDA:   ValueByEVEBITDA(r, d),
		ValueRevenue:    ValueByRevenue(r),
		ValuePE:         ValueByPE(r),
	}
	v.ValuePB, v.PBInputsDefaulted = ValueByPB(r)
	v.FinalExpectedPrice, v.GainPct = Blend(r.CurrentPrice, v.MethodValues())

	return v
}
