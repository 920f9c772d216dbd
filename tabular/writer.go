package tabular

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/shopspring/decimal"
)

// FormatNumber renders v rounded half away from zero to two decimals.
// Absent values render as an empty cell.
func FormatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}

func formatFlag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// WriteExport writes a ranked universe. Rows are written in the order given.
func WriteExport(w io.Writer, rows []models.ValuedRecord, extended bool) error {
	cw := csv.NewWriter(w)

	header := BasicExportColumns
	if extended {
		header = ExtendedExportColumns
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.Name,
			FormatNumber(r.GainPct),
			FormatNumber(r.CurrentPrice),
			FormatNumber(r.FinalExpectedPrice),
		}
		if extended {
			record = append(record,
				FormatNumber(r.MarketCapitalization),
				FormatNumber(r.ValueEVEBITDA),
				FormatNumber(r.ValueRevenue),
				FormatNumber(r.ValuePE),
				FormatNumber(r.ValuePB),
				formatFlag(r.PBInputsDefaulted),
			)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write export row %q: %w", r.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WritePortfolio writes a reviewed portfolio.
func WritePortfolio(w io.Writer, rows []models.PortfolioRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PortfolioColumns); err != nil {
		return fmt.Errorf("failed to write portfolio header: %w", err)
	}

	for _, r := range rows {
		rec := ""
		if r.Recommendation != nil {
			rec = string(*r.Recommendation)
		}
		record := []string{
			r.InstrumentCode,
			FormatNumber(r.Quantity),
			FormatNumber(r.AverageCost),
			FormatNumber(r.LastTradedPrice),
			FormatNumber(r.PnLPct),
			FormatNumber(r.ReferenceCostBasis),
			FormatNumber(r.FinalExpectedPrice),
			rec,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write portfolio row %q: %w", r.InstrumentCode, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
