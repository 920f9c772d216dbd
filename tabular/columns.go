// Package tabular reads and writes the CSV files exchanged with users:
// fundamentals universes, holdings, ranked exports and portfolio reviews.
package tabular

// Universe columns as they appear in a screener export.
const (
	ColName                   = "Name"
	ColIsSME                  = "Is SME"
	ColCurrentPrice           = "Current Price"
	ColShares                 = "Number of equity shares"
	ColDebt                   = "Debt"
	ColCashEquivalents        = "Cash Equivalents"
	ColOperatingProfit        = "Operating profit"
	ColOperatingProfitGrowth  = "Operating profit growth"
	ColSales                  = "Sales"
	ColSalesGrowth            = "Sales growth"
	ColProfitAfterTax         = "Profit after tax"
	ColProfitGrowth           = "Profit growth"
	ColPriceToEarning         = "Price to Earning"
	ColIndustryPE             = "Industry PE"
	ColPriceToBookValue       = "Price to book value"
	ColIndustryPBV            = "Industry PBV"
	ColBookValue              = "Book value"
	ColBookValuePrecedingYear = "Book value preceding year"
	ColMarketCapitalization   = "Market Capitalization"
	ColNSECode                = "NSE Code"
	ColBSECode                = "BSE Code"
)

// RequiredUniverseColumns must all be present in a universe file.
var RequiredUniverseColumns = []string{
	ColName,
	ColIsSME,
	ColCurrentPrice,
	ColShares,
	ColDebt,
	ColCashEquivalents,
	ColOperatingProfit,
	ColOperatingProfitGrowth,
	ColSales,
	ColSalesGrowth,
	ColProfitAfterTax,
	ColProfitGrowth,
	ColPriceToEarning,
	ColIndustryPE,
	ColPriceToBookValue,
	ColIndustryPBV,
	ColBookValue,
	ColBookValuePrecedingYear,
	ColMarketCapitalization,
}

// Holdings columns as exported by the broker console.
const (
	ColInstrument = "Instrument"
	ColQuantity   = "Qty."
	ColAvgCost    = "Avg. cost"
	ColLTP        = "LTP"
)

var RequiredHoldingColumns = []string{ColInstrument, ColQuantity, ColAvgCost, ColLTP}

// Export columns.
const (
	ColGainPct              = "Gain%"
	ColFinalExpectedPrice   = "Final expected price"
	ColMarketCapitalisation = "Market Capitalisation"
	ColValueEVEBITDA        = "Value as per EV/EBITDA Method"
	ColValueRevenue         = "Value as per Revenue Method"
	ColValuePE              = "Value as per PE Multiple"
	ColValuePB              = "Value as per PB Multiple"
	ColPBElementsIsOne      = "PB_elements_is_1"
	ColPnLPct               = "P&L/%"
	ColMaxValue             = "Max Value"
	ColRecommendation       = "HOLD/SELL"
)

var (
	BasicExportColumns = []string{ColName, ColGainPct, ColCurrentPrice, ColFinalExpectedPrice}

	ExtendedExportColumns = []string{
		ColName, ColGainPct, ColCurrentPrice, ColFinalExpectedPrice,
		ColMarketCapitalisation,
		ColValueEVEBITDA, ColValueRevenue, ColValuePE, ColValuePB,
		ColPBElementsIsOne,
	}

	PortfolioColumns = []string{
		ColInstrument, ColQuantity, ColAvgCost, ColLTP,
		ColPnLPct, ColMaxValue, ColFinalExpectedPrice, ColRecommendation,
	}
)
