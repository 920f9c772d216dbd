package tabular

import (
	"io"

	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/sirupsen/logrus"
)

var consumedUniverseColumns = func() map[string]bool {
	m := map[string]bool{ColNSECode: true, ColBSECode: true}
	for _, c := range RequiredUniverseColumns {
		m[c] = true
	}
	return m
}()

// UniverseTable is a decoded fundamentals export.
type UniverseTable struct {
	Records []models.CompanyRecord
	// Columns lists the header in file order.
	Columns []string
	// Skipped counts malformed rows that were dropped.
	Skipped int
}

// ReadUniverse decodes a fundamentals CSV. If any required column is missing
// it returns a *engine.MissingFieldError naming all of them and no rows.
func ReadUniverse(r io.Reader) (*UniverseTable, error) {
	t, err := openTable("universe", r, RequiredUniverseColumns)
	if err != nil {
		return nil, err
	}

	out := &UniverseTable{Columns: t.header}
	for {
		record, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, t.companyRecord(record))
	}
	out.Skipped = t.skipped

	logger.WithFields(logrus.Fields{
		"rows":    len(out.Records),
		"columns": len(out.Columns),
		"skipped": out.Skipped,
	}).Debug("Decoded universe table")

	return out, nil
}

func (t *table) companyRecord(record []string) models.CompanyRecord {
	code := t.cell(record, ColNSECode)
	if code == "" {
		code = t.cell(record, ColBSECode)
	}

	c := models.CompanyRecord{
		Name:                     t.cell(record, ColName),
		Code:                     code,
		IsSME:                    ParseFlag(t.cell(record, ColIsSME)),
		NumberOfEquityShares:     t.number(record, ColShares),
		CurrentPrice:             t.number(record, ColCurrentPrice),
		Debt:                     t.number(record, ColDebt),
		CashEquivalents:          t.number(record, ColCashEquivalents),
		OperatingProfit:          t.number(record, ColOperatingProfit),
		OperatingProfitGrowthPct: t.number(record, ColOperatingProfitGrowth),
		Sales:                    t.number(record, ColSales),
		SalesGrowthPct:           t.number(record, ColSalesGrowth),
		ProfitAfterTax:           t.number(record, ColProfitAfterTax),
		ProfitGrowthPct:          t.number(record, ColProfitGrowth),
		PriceToEarnings:          t.number(record, ColPriceToEarning),
		IndustryPE:               t.number(record, ColIndustryPE),
		PriceToBook:              t.number(record, ColPriceToBookValue),
		IndustryPBV:              t.number(record, ColIndustryPBV),
		BookValue:                t.number(record, ColBookValue),
		BookValuePriorYear:       t.number(record, ColBookValuePrecedingYear),
		MarketCapitalization:     t.number(record, ColMarketCapitalization),
	}

	for i, col := range t.header {
		if consumedUniverseColumns[col] || i >= len(record) {
			continue
		}
		if c.Extras == nil {
			c.Extras = make(map[string]string)
		}
		c.Extras[col] = record[i]
	}
	return c
}
