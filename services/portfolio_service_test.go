package services

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHoldingsCSV = "Instrument,Qty.,Avg. cost,LTP\n" +
	"NSE:REFIND-EQ,10,40,45\n" +
	"REFIND,5,120,110\n" +
	"UNKNOWN,1,10,12\n"

func newTestPortfolioService(t *testing.T) (*PortfolioService, sqlmock.Sqlmock, *shared.MetricsRegistry) {
	t.Helper()
	universes, mock := newTestUniverseService(t)
	metrics := shared.NewMetricsRegistry()
	return NewPortfolioService(universes.DB, universes, metrics), mock, metrics
}

func TestPortfolioCreateFromCSV(t *testing.T) {
	svc, mock, _ := newTestPortfolioService(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO portfolios")).
		WithArgs(sqlmock.AnyArg(), "long term", sqlmock.AnyArg(), anyTime{}, anyTime{}).
		WillReturnResult(sqlmock.NewResult(1, 1))

	p, err := svc.CreateFromCSV(context.Background(), "long term", []byte(testHoldingsCSV))
	require.NoError(t, err)
	require.Len(t, p.Holdings, 3)
	assert.Equal(t, "NSE:REFIND-EQ", p.Holdings[0].InstrumentCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPortfolioCreateRequiresName(t *testing.T) {
	svc, _, _ := newTestPortfolioService(t)

	_, err := svc.Create(context.Background(), "  ", nil)
	require.Error(t, err)
	assert.Equal(t, shared.ErrorCategoryValidation, shared.ErrorCategoryOf(err))
}

func TestPortfolioRenameAndDeleteMissing(t *testing.T) {
	svc, mock, _ := newTestPortfolioService(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE portfolios SET name")).
		WithArgs(id, "renamed", anyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := svc.Rename(context.Background(), id, "renamed")
	assert.Equal(t, shared.ErrorCategoryNotFound, shared.ErrorCategoryOf(err))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM portfolios")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, svc.Delete(context.Background(), id))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPortfolioReview(t *testing.T) {
	svc, mock, metrics := newTestPortfolioService(t)
	portfolioID := uuid.New()
	universeID := uuid.New()

	holdings := []models.HoldingRecord{
		{InstrumentCode: "NSE:REFIND-EQ", Quantity: models.Float(10), AverageCost: models.Float(40), LastTradedPrice: models.Float(45)},
		{InstrumentCode: "REFIND", Quantity: models.Float(5), AverageCost: models.Float(120), LastTradedPrice: models.Float(110)},
		{InstrumentCode: "UNKNOWN", Quantity: models.Float(1), AverageCost: models.Float(10), LastTradedPrice: models.Float(12)},
	}
	payload, err := json.Marshal(holdings)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM portfolios WHERE id = $1")).
		WithArgs(portfolioID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "holdings", "created_at", "updated_at"}).
			AddRow(portfolioID.String(), "mine", payload, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM universes WHERE id = $1")).
		WithArgs(universeID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "source", "row_count", "raw_csv", "created_at"}).
			AddRow(universeID.String(), "u", "upload", 2, []byte(testUniverseCSV), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO valuation_runs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rows, err := svc.Review(context.Background(), portfolioID, universeID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Final expected price for REFIND is about 101.08.
	require.NotNil(t, rows[0].Recommendation)
	assert.Equal(t, models.RecommendationHold, *rows[0].Recommendation)
	require.NotNil(t, rows[1].Recommendation)
	assert.Equal(t, models.RecommendationSell, *rows[1].Recommendation)
	assert.InDelta(t, 120.0, *rows[1].ReferenceCostBasis, 1e-9)
	assert.Nil(t, rows[2].Valuation)
	assert.Nil(t, rows[2].Recommendation)
	assert.InDelta(t, 20.0, *rows[2].PnLPct, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PortfolioReview.WithLabelValues("HOLD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PortfolioReview.WithLabelValues("SELL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PortfolioReview.WithLabelValues("none")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
