package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/fenilmodi00/valuation-backend/tabular"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const portfolioServiceName = "PortfolioService"

// PortfolioService manages named holdings lists and reviews them against a valued universe.
type PortfolioService struct {
	DB        *sql.DB
	Universes *UniverseService
	metrics   *shared.MetricsRegistry
	logger    *logrus.Entry
}

// NewPortfolioService creates the service. metrics may be nil.
func NewPortfolioService(db *sql.DB, universes *UniverseService, metrics *shared.MetricsRegistry) *PortfolioService {
	return &PortfolioService{
		DB:        db,
		Universes: universes,
		metrics:   metrics,
		logger:    logrus.WithField("component", portfolioServiceName),
	}
}

// CreateFromCSV decodes a holdings CSV and stores it under name.
func (s *PortfolioService) CreateFromCSV(ctx context.Context, name string, raw []byte) (*models.Portfolio, error) {
	holdings, err := tabular.ReadHoldings(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, name, holdings)
}

// Create stores a new portfolio.
func (s *PortfolioService) Create(ctx context.Context, name string, holdings []models.HoldingRecord) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewServiceError(shared.ErrorCategoryValidation, "PORTFOLIO_NAME_REQUIRED",
			"portfolio name is required", portfolioServiceName, "Create", false, nil)
	}
	if holdings == nil {
		holdings = []models.HoldingRecord{}
	}

	payload, err := json.Marshal(holdings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode holdings: %w", err)
	}

	now := time.Now().UTC()
	p := &models.Portfolio{
		ID:        uuid.New(),
		Name:      name,
		Holdings:  holdings,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const query = `
		INSERT INTO portfolios (id, name, holdings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.DB.ExecContext(ctx, query, p.ID, p.Name, payload, p.CreatedAt, p.UpdatedAt); err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "PORTFOLIO_INSERT_FAILED",
			"failed to store portfolio", portfolioServiceName, "Create", true, err)
	}

	s.logger.WithFields(logrus.Fields{
		"portfolio_id": p.ID,
		"name":         p.Name,
		"holdings":     len(p.Holdings),
	}).Info("Stored portfolio")
	return p, nil
}

// Get loads one portfolio with its holdings.
func (s *PortfolioService) Get(ctx context.Context, id uuid.UUID) (*models.Portfolio, error) {
	const query = `
		SELECT id, name, holdings, created_at, updated_at
		FROM portfolios WHERE id = $1`

	var p models.Portfolio
	var payload []byte
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &payload, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NotFound(portfolioServiceName, "Get", fmt.Sprintf("portfolio %s", id))
	}
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "PORTFOLIO_QUERY_FAILED",
			"failed to load portfolio", portfolioServiceName, "Get", true, err)
	}
	if err := json.Unmarshal(payload, &p.Holdings); err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "PORTFOLIO_DECODE_FAILED",
			"stored holdings are not valid JSON", portfolioServiceName, "Get", false, err)
	}
	return &p, nil
}

// List returns every portfolio without holdings, ordered by name.
func (s *PortfolioService) List(ctx context.Context) ([]models.Portfolio, error) {
	const query = `
		SELECT id, name, jsonb_array_length(holdings), created_at, updated_at
		FROM portfolios ORDER BY name, created_at`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "PORTFOLIO_QUERY_FAILED",
			"failed to list portfolios", portfolioServiceName, "List", true, err)
	}
	defer rows.Close()

	portfolios := []models.Portfolio{}
	for rows.Next() {
		var p models.Portfolio
		var count int
		if err := rows.Scan(&p.ID, &p.Name, &count, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.Holdings = make([]models.HoldingRecord, 0, count)
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// Rename changes a portfolio's display name.
func (s *PortfolioService) Rename(ctx context.Context, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewServiceError(shared.ErrorCategoryValidation, "PORTFOLIO_NAME_REQUIRED",
			"portfolio name is required", portfolioServiceName, "Rename", false, nil)
	}

	const query = `UPDATE portfolios SET name = $2, updated_at = $3 WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, id, name, time.Now().UTC())
	return s.expectOneRow(res, err, id, "Rename")
}

// Delete removes a portfolio.
func (s *PortfolioService) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM portfolios WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, id)
	return s.expectOneRow(res, err, id, "Delete")
}

func (s *PortfolioService) expectOneRow(res sql.Result, err error, id uuid.UUID, operation string) error {
	if err != nil {
		return shared.NewServiceError(shared.ErrorCategoryDatabase, "PORTFOLIO_UPDATE_FAILED",
			"failed to update portfolio", portfolioServiceName, operation, true, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return shared.NotFound(portfolioServiceName, operation, fmt.Sprintf("portfolio %s", id))
	}
	return nil
}

// Review values the universe and annotates each holding of the portfolio.
func (s *PortfolioService) Review(ctx context.Context, portfolioID, universeID uuid.UUID) ([]models.PortfolioRow, error) {
	p, err := s.Get(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	result, err := s.Universes.Value(ctx, universeID)
	if err != nil {
		return nil, err
	}
	return s.ReviewHoldings(p.Holdings, result.Records), nil
}

// ReviewHoldings merges holdings with already valued records, one row per holding in input order.
func (s *PortfolioService) ReviewHoldings(holdings []models.HoldingRecord, valued []models.ValuedRecord) []models.PortfolioRow {
	rows := engine.MergePortfolio(holdings, valued)

	matched := 0
	for _, r := range rows {
		if r.Valuation != nil {
			matched++
		}
		rec := ""
		if r.Recommendation != nil {
			rec = string(*r.Recommendation)
		}
		s.metrics.RecordRecommendation(rec)
	}

	s.logger.WithFields(logrus.Fields{
		"holdings":  len(holdings),
		"matched":   matched,
		"unmatched": len(holdings) - matched,
	}).Info("Reviewed portfolio")
	return rows
}
