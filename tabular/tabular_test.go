package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const universeHeader = "\ufeffName,NSE Code,Is SME,Current Price,Number of equity shares,Debt,Cash Equivalents," +
	"Operating profit,Operating profit growth,Sales,Sales growth,Profit after tax,Profit growth," +
	"Price to Earning,Industry PE,Price to book value,Industry PBV,Book value,Book value preceding year," +
	"Market Capitalization,Return on equity\n"

func TestReadUniverse(t *testing.T) {
	csvData := universeHeader +
		`Reference Industries,REFIND,0,50,100,200,50,100,10,1000,5,80,8,12,15,2,2.5,120,100,"5,000",18.5` + "\n" +
		`Tiny Works,,1,NaN,-,,,0,,,,,,,,,,,,,` + "\n" +
		`Broken Row,BRK,0,1,2` + "\n"

	table, err := ReadUniverse(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Equal(t, 1, table.Skipped)
	assert.Equal(t, "Name", table.Columns[0])

	ref := table.Records[0]
	assert.Equal(t, "Reference Industries", ref.Name)
	assert.Equal(t, "REFIND", ref.Code)
	require.NotNil(t, ref.IsSME)
	assert.False(t, *ref.IsSME)
	require.NotNil(t, ref.MarketCapitalization)
	assert.Equal(t, 5000.0, *ref.MarketCapitalization)
	assert.Equal(t, "18.5", ref.Extras["Return on equity"])

	v := engine.Evaluate(ref)
	require.NotNil(t, v.GainPct)
	assert.InDelta(t, 102.16736466322749, *v.GainPct, 1e-6)

	tiny := table.Records[1]
	assert.Nil(t, tiny.CurrentPrice)
	assert.Nil(t, tiny.NumberOfEquityShares)
	assert.Nil(t, tiny.Debt)
	require.NotNil(t, tiny.OperatingProfit)
	assert.Equal(t, 0.0, *tiny.OperatingProfit)
	require.NotNil(t, tiny.IsSME)
	assert.True(t, *tiny.IsSME)
}

func TestReadUniverseMissingColumns(t *testing.T) {
	csvData := "Name,Current Price,Debt\nA,1,2\n"

	_, err := ReadUniverse(strings.NewReader(csvData))
	require.Error(t, err)
	assert.True(t, engine.IsMissingField(err))

	var mf *engine.MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Contains(t, mf.Columns, ColIsSME)
	assert.Contains(t, mf.Columns, ColBookValuePrecedingYear)
	assert.NotContains(t, mf.Columns, ColDebt)
	assert.Len(t, mf.Columns, len(RequiredUniverseColumns)-3)
}

func TestReadUniverseEmpty(t *testing.T) {
	_, err := ReadUniverse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"12.5", models.Float(12.5)},
		{" 1,23,456.7 ", models.Float(123456.7)},
		{"-3%", models.Float(-3)},
		{"₹ 99", models.Float(99)},
		{"", nil},
		{"NaN", nil},
		{"-", nil},
		{"abc", nil},
		{"Inf", nil},
	}
	for _, tt := range tests {
		got := ParseNumber(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, tt.in)
			continue
		}
		require.NotNil(t, got, tt.in)
		assert.Equal(t, *tt.want, *got, tt.in)
	}
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		in   string
		want *bool
	}{
		{"1", models.Bool(true)},
		{"1.00", models.Bool(true)},
		{" 1.000 ", models.Bool(true)},
		{"True", models.Bool(true)},
		{"0", models.Bool(false)},
		{"0.00", models.Bool(false)},
		{"no", models.Bool(false)},
		{"2", nil},
		{"0.5", nil},
		{"", nil},
		{"maybe", nil},
	}
	for _, tt := range tests {
		got := ParseFlag(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, tt.in)
			continue
		}
		require.NotNil(t, got, tt.in)
		assert.Equal(t, *tt.want, *got, tt.in)
	}
}

func TestReadHoldings(t *testing.T) {
	csvData := "Instrument,Qty.,Avg. cost,LTP,Cur. val\nTCS,10,\"3,200.50\",3500,35000\n,1,1,1,1\nINFY,5,0,1400,7000\n"

	holdings, err := ReadHoldings(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "TCS", holdings[0].InstrumentCode)
	assert.Equal(t, 3200.5, *holdings[0].AverageCost)
	assert.Equal(t, 0.0, *holdings[1].AverageCost)

	_, err = ReadHoldings(strings.NewReader("Instrument,LTP\nTCS,1\n"))
	assert.True(t, engine.IsMissingField(err))
}

func TestWriteExport(t *testing.T) {
	rows := []models.ValuedRecord{
		engine.Evaluate(models.CompanyRecord{
			Name:                     "Reference Industries",
			NumberOfEquityShares:     models.Float(100),
			CurrentPrice:             models.Float(50),
			Debt:                     models.Float(200),
			CashEquivalents:          models.Float(50),
			OperatingProfit:          models.Float(100),
			OperatingProfitGrowthPct: models.Float(10),
			Sales:                    models.Float(1000),
			SalesGrowthPct:           models.Float(5),
			ProfitAfterTax:           models.Float(80),
			ProfitGrowthPct:          models.Float(8),
			PriceToEarnings:          models.Float(12),
			IndustryPE:               models.Float(15),
			PriceToBook:              models.Float(2),
			IndustryPBV:              models.Float(2.5),
			BookValue:                models.Float(120),
			BookValuePriorYear:       models.Float(100),
			MarketCapitalization:     models.Float(5000),
		}),
		{CompanyRecord: models.CompanyRecord{Name: "No Data"}, PBInputsDefaulted: true},
	}

	var basic bytes.Buffer
	require.NoError(t, WriteExport(&basic, rows, false))
	assert.Equal(t,
		"Name,Gain%,Current Price,Final expected price\n"+
			"Reference Industries,102.17,50.00,101.08\n"+
			"No Data,,,\n",
		basic.String())

	var extended bytes.Buffer
	require.NoError(t, WriteExport(&extended, rows, true))
	lines := strings.Split(strings.TrimSpace(extended.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(ExtendedExportColumns, ","), lines[0])
	assert.Equal(t, "Reference Industries,102.17,50.00,101.08,5000.00,53.49,52.38,11.79,286.68,False", lines[1])
	assert.Equal(t, "No Data,,,,,,,,,True", lines[2])
}

func TestWritePortfolio(t *testing.T) {
	hold := models.RecommendationHold
	rows := []models.PortfolioRow{
		{
			HoldingRecord: models.HoldingRecord{
				InstrumentCode:  "ALPHA",
				Quantity:        models.Float(10),
				AverageCost:     models.Float(100),
				LastTradedPrice: models.Float(120),
			},
			PnLPct:             models.Float(20),
			ReferenceCostBasis: models.Float(120),
			FinalExpectedPrice: models.Float(150.555),
			Recommendation:     &hold,
		},
		{HoldingRecord: models.HoldingRecord{InstrumentCode: "GONE"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePortfolio(&buf, rows))
	assert.Equal(t,
		"Instrument,Qty.,Avg. cost,LTP,P&L/%,Max Value,Final expected price,HOLD/SELL\n"+
			"ALPHA,10.00,100.00,120.00,20.00,120.00,150.56,HOLD\n"+
			"GONE,,,,,,,\n",
		buf.String())
}
