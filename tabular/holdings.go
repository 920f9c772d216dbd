package tabular

import (
	"io"

	"github.com/fenilmodi00/valuation-backend/models"
)

// ReadHoldings decodes a broker holdings CSV. Rows without an instrument are dropped.
func ReadHoldings(r io.Reader) ([]models.HoldingRecord, error) {
	t, err := openTable("holdings", r, RequiredHoldingColumns)
	if err != nil {
		return nil, err
	}

	var holdings []models.HoldingRecord
	for {
		record, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		instrument := t.cell(record, ColInstrument)
		if instrument == "" {
			continue
		}
		holdings = append(holdings, models.HoldingRecord{
			InstrumentCode:  instrument,
			Quantity:        t.number(record, ColQuantity),
			AverageCost:     t.number(record, ColAvgCost),
			LastTradedPrice: t.number(record, ColLTP),
		})
	}
	return holdings, nil
}
