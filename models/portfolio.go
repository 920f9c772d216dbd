package models

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation is the per-holding verdict of a portfolio review.
type Recommendation string

const (
	RecommendationHold Recommendation = "HOLD"
	RecommendationSell Recommendation = "SELL"
)

type HoldingRecord struct {
	InstrumentCode  string   `json:"instrument_code"`
	Quantity        *float64 `json:"quantity"`
	AverageCost     *float64 `json:"average_cost"`
	LastTradedPrice *float64 `json:"last_traded_price"`
}

// PortfolioRow is a holding joined with its valuation, if any.
type PortfolioRow struct {
	HoldingRecord

	Valuation          *ValuedRecord   `json:"valuation,omitempty"`
	PnLPct             *float64        `json:"pnl_pct"`
	ReferenceCostBasis *float64        `json:"reference_cost_basis"`
	FinalExpectedPrice *float64        `json:"final_expected_price"`
	Recommendation     *Recommendation `json:"recommendation"`
}

// Portfolio is a named, stored set of holdings.
type Portfolio struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Holdings  []HoldingRecord `json:"holdings"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
