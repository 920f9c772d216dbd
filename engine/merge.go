package engine

import (
	"math"
	"strings"

	"github.com/fenilmodi00/valuation-backend/models"
)

var seriesSuffixes = []string{"-EQ", "-BE", "-BZ", "-SM", "-ST"}

// NormalizeInstrumentCode canonicalises an exchange code for joining:
// trimmed, upper-cased, with any "NSE:"/"BSE:" prefix and trading series
// suffix removed.
func NormalizeInstrumentCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if i := strings.Index(c, ":"); i >= 0 {
		c = c[i+1:]
	}
	for _, s := range seriesSuffixes {
		if strings.HasSuffix(c, s) {
			c = strings.TrimSuffix(c, s)
			break
		}
	}
	return strings.TrimSpace(c)
}

// IndexByCode maps normalised instrument codes to valued rows. The first row
// for a code wins; rows without a code are skipped.
func IndexByCode(valued []models.ValuedRecord) map[string]*models.ValuedRecord {
	idx := make(map[string]*models.ValuedRecord, len(valued))
	for i := range valued {
		code := NormalizeInstrumentCode(valued[i].Code)
		if code == "" {
			continue
		}
		if _, seen := idx[code]; seen {
			continue
		}
		idx[code] = &valued[i]
	}
	return idx
}

// MergePortfolio left-joins holdings onto the valued universe by instrument
// code. Every holding produces exactly one row, in input order.
func MergePortfolio(holdings []models.HoldingRecord, valued []models.ValuedRecord) []models.PortfolioRow {
	idx := IndexByCode(valued)

	rows := make([]models.PortfolioRow, 0, len(holdings))
	for _, h := range holdings {
		row := models.PortfolioRow{HoldingRecord: h}

		if v, ok := idx[NormalizeInstrumentCode(h.InstrumentCode)]; ok {
			match := *v
			row.Valuation = &match
			row.FinalExpectedPrice = match.FinalExpectedPrice
		}

		row.PnLPct = pnlPct(h.AverageCost, h.LastTradedPrice)
		if all(h.AverageCost, h.LastTradedPrice) {
			row.ReferenceCostBasis = finite(math.Max(*h.AverageCost, *h.LastTradedPrice))
		}
		row.Recommendation = Recommend(row.FinalExpectedPrice, row.ReferenceCostBasis)

		rows = append(rows, row)
	}
	return rows
}

// pnlPct uses the per-unit ratio so that a zero quantity does not matter.
func pnlPct(avgCost, ltp *float64) *float64 {
	if !all(avgCost, ltp) {
		return nil
	}
	ratio, err := div(*ltp-*avgCost, *avgCost)
	if err != nil {
		return nil
	}
	return finite(ratio * 100)
}

// Recommend returns HOLD when the expected price is above the cost basis and
// SELL otherwise. Without both values there is no recommendation.
func Recommend(finalExpectedPrice, referenceCostBasis *float64) *models.Recommendation {
	if finalExpectedPrice == nil || referenceCostBasis == nil {
		return nil
	}
	rec := models.RecommendationSell
	if *finalExpectedPrice > *referenceCostBasis {
		rec = models.RecommendationHold
	}
	return &rec
}
