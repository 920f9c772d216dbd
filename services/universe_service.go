package services

import (
	"bytes"
	"context"
	"database/sql"
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

const universeServiceName = "UniverseService"

// UniverseService stores fundamentals exports and values them on demand.
type UniverseService struct {
	DB     *sql.DB
	Cache  *CacheService
	Engine *engine.Engine
	logger *logrus.Entry
}

// NewUniverseService wires the store, the decoded-table cache and the engine.
func NewUniverseService(db *sql.DB, cache *CacheService, eng *engine.Engine) *UniverseService {
	return &UniverseService{
		DB:     db,
		Cache:  cache,
		Engine: eng,
		logger: logrus.WithField("component", universeServiceName),
	}
}

func universeCacheKey(id uuid.UUID) string {
	return "universe:" + id.String()
}

// Store decodes raw to validate it, then persists it. A table missing a
// required column is rejected with a *engine.MissingFieldError.
func (s *UniverseService) Store(ctx context.Context, name, source string, raw []byte) (*models.Universe, error) {
	table, err := tabular.ReadUniverse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "universe " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	if source != models.UniverseSourceScrape {
		source = models.UniverseSourceUpload
	}

	u := &models.Universe{
		ID:        uuid.New(),
		Name:      name,
		Source:    source,
		RowCount:  len(table.Records),
		RawCSV:    raw,
		CreatedAt: time.Now().UTC(),
	}

	const query = `
		INSERT INTO universes (id, name, source, row_count, raw_csv, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.DB.ExecContext(ctx, query, u.ID, u.Name, u.Source, u.RowCount, u.RawCSV, u.CreatedAt); err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "UNIVERSE_INSERT_FAILED",
			"failed to store universe", universeServiceName, "Store", true, err)
	}
	s.Cache.Set(universeCacheKey(u.ID), table)

	s.logger.WithFields(logrus.Fields{
		"universe_id": u.ID,
		"name":        u.Name,
		"source":      u.Source,
		"rows":        u.RowCount,
		"skipped":     table.Skipped,
	}).Info("Stored universe")

	return u, nil
}

// Get loads a universe including its raw CSV.
func (s *UniverseService) Get(ctx context.Context, id uuid.UUID) (*models.Universe, error) {
	const query = `
		SELECT id, name, source, row_count, raw_csv, created_at
		FROM universes WHERE id = $1`

	var u models.Universe
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Source, &u.RowCount, &u.RawCSV, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NotFound(universeServiceName, "Get", fmt.Sprintf("universe %s", id))
	}
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "UNIVERSE_QUERY_FAILED",
			"failed to load universe", universeServiceName, "Get", true, err)
	}
	return &u, nil
}

// List returns universe metadata, newest first.
func (s *UniverseService) List(ctx context.Context) ([]models.Universe, error) {
	const query = `
		SELECT id, name, source, row_count, created_at
		FROM universes ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "UNIVERSE_QUERY_FAILED",
			"failed to list universes", universeServiceName, "List", true, err)
	}
	defer rows.Close()

	universes := []models.Universe{}
	for rows.Next() {
		var u models.Universe
		if err := rows.Scan(&u.ID, &u.Name, &u.Source, &u.RowCount, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan universe: %w", err)
		}
		universes = append(universes, u)
	}
	return universes, rows.Err()
}

// Latest returns the most recently stored universe.
func (s *UniverseService) Latest(ctx context.Context) (*models.Universe, error) {
	const query = `SELECT id FROM universes ORDER BY created_at DESC LIMIT 1`

	var id uuid.UUID
	err := s.DB.QueryRowContext(ctx, query).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NotFound(universeServiceName, "Latest", "stored universe")
	}
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "UNIVERSE_QUERY_FAILED",
			"failed to find latest universe", universeServiceName, "Latest", true, err)
	}
	return s.Get(ctx, id)
}

// Table returns the decoded table for a stored universe, from cache when possible.
func (s *UniverseService) Table(ctx context.Context, id uuid.UUID) (*tabular.UniverseTable, error) {
	if cached, ok := s.Cache.Get(universeCacheKey(id)); ok {
		if table, ok := cached.(*tabular.UniverseTable); ok {
			return table, nil
		}
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	table, err := tabular.ReadUniverse(bytes.NewReader(u.RawCSV))
	if err != nil {
		return nil, err
	}
	s.Cache.Set(universeCacheKey(id), table)
	return table, nil
}

// Value runs the engine over a stored universe and records an audit row.
// The returned records are in table order.
func (s *UniverseService) Value(ctx context.Context, id uuid.UUID) (*engine.Result, error) {
	table, err := s.Table(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.Engine.Value(ctx, table.Records)
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryTimeout, "VALUATION_CANCELLED",
			"valuation run did not complete", universeServiceName, "Value", true, err)
	}

	if err := s.recordRun(ctx, id, result.Summary); err != nil {
		// The valuation is still valid without its audit row.
		s.logger.WithError(err).WithField("universe_id", id).Warn("Failed to record valuation run")
	}
	return result, nil
}

func (s *UniverseService) recordRun(ctx context.Context, id uuid.UUID, summary models.ValuationSummary) error {
	const query = `
		INSERT INTO valuation_runs (id, universe_id, rows_total, rows_valued, rows_absent, row_failures, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.DB.ExecContext(ctx, query, uuid.New(), id, summary.Rows, summary.FullyValued,
		summary.AbsentFinalPrice, summary.Failures, summary.DurationMillis, time.Now().UTC())
	return err
}

// Runs lists the audit trail of a universe, newest first.
func (s *UniverseService) Runs(ctx context.Context, id uuid.UUID, limit int) ([]models.ValuationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, universe_id, rows_total, rows_valued, rows_absent, row_failures, duration_ms, created_at
		FROM valuation_runs WHERE universe_id = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := s.DB.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "RUN_QUERY_FAILED",
			"failed to list valuation runs", universeServiceName, "Runs", true, err)
	}
	defer rows.Close()

	runs := []models.ValuationRun{}
	for rows.Next() {
		var r models.ValuationRun
		if err := rows.Scan(&r.ID, &r.UniverseID, &r.Rows, &r.Valued, &r.Absent, &r.Failures, &r.DurationMillis, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan valuation run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
