package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options controls how a batch is scheduled. The output never depends on it.
type Options struct {
	// Workers is the number of chunks evaluated concurrently. Values below 2
	// evaluate sequentially.
	Workers int
	// ChunkSize is the number of rows handed to one worker at a time.
	ChunkSize int
}

// DefaultOptions evaluates sequentially in chunks of 500 rows.
func DefaultOptions() Options {
	return Options{Workers: 1, ChunkSize: 500}
}

// Result is the outcome of valuing one universe.
type Result struct {
	Records  []models.ValuedRecord   `json:"records"`
	Failures []*RowError             `json:"-"`
	Summary  models.ValuationSummary `json:"summary"`
}

// Engine values universes of company records. It holds no per-run state and
// is safe for concurrent use.
type Engine struct {
	opts     Options
	metrics  *shared.MetricsRegistry
	logger   *logrus.Entry
	evaluate func(models.CompanyRecord) models.ValuedRecord
}

// New creates an engine. metrics may be nil.
func New(opts Options, metrics *shared.MetricsRegistry) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Engine{
		opts:     opts,
		metrics:  metrics,
		logger:   logrus.WithField("component", "ValuationEngine"),
		evaluate: Evaluate,
	}
}

// Value evaluates every row and returns them in input order. A row that fails
// unexpectedly is kept with all derived fields absent and listed in
// Result.Failures. The only error returned is ctx's.
func (e *Engine) Value(ctx context.Context, rows []models.CompanyRecord) (*Result, error) {
	start := time.Now()

	records := make([]models.ValuedRecord, len(rows))
	failures := make([]*RowError, len(rows))

	runChunk := func(from, to int) {
		for i := from; i < to; i++ {
			records[i], failures[i] = e.evaluateRow(i, rows[i])
		}
	}

	if e.opts.Workers < 2 || len(rows) <= e.opts.ChunkSize {
		for from := 0; from < len(rows); from += e.opts.ChunkSize {
			if err := ctx.Err(); err != nil {
				e.metrics.RecordValuationRun("cancelled", 0, 0, 0, nil, time.Since(start))
				return nil, err
			}
			runChunk(from, min(from+e.opts.ChunkSize, len(rows)))
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Workers)
		for from := 0; from < len(rows); from += e.opts.ChunkSize {
			to := min(from+e.opts.ChunkSize, len(rows))
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				runChunk(from, to)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			e.metrics.RecordValuationRun("cancelled", 0, 0, 0, nil, time.Since(start))
			return nil, err
		}
	}

	result := &Result{Records: records}
	for _, f := range failures {
		if f != nil {
			result.Failures = append(result.Failures, f)
		}
	}
	result.Summary = Summarize(records, len(result.Failures), time.Since(start))

	e.metrics.RecordValuationRun("completed",
		result.Summary.FullyValued,
		result.Summary.AbsentFinalPrice,
		result.Summary.Failures,
		result.Summary.AbsentByField,
		time.Since(start))

	fields := logrus.Fields{
		"rows":               result.Summary.Rows,
		"fully_valued":       result.Summary.FullyValued,
		"absent_final_price": result.Summary.AbsentFinalPrice,
		"row_failures":       result.Summary.Failures,
		"duration_ms":        result.Summary.DurationMillis,
		"workers":            e.opts.Workers,
	}
	if len(result.Failures) > 0 {
		sample := make([]error, 0, 10)
		for _, f := range result.Failures {
			if len(sample) == cap(sample) {
				break
			}
			sample = append(sample, f)
		}
		fields["error_summary"] = shared.SummarizeRowFailures(len(rows)-len(result.Failures), len(result.Failures), sample)
	}
	e.logger.WithFields(fields).Info("Valuation run completed")

	return result, nil
}

// evaluateRow isolates one row so that a panic cannot lose the batch.
func (e *Engine) evaluateRow(index int, r models.CompanyRecord) (v models.ValuedRecord, failure *RowError) {
	defer func() {
		if rec := recover(); rec != nil {
			failure = &RowError{Index: index, Name: r.Name, Cause: fmt.Errorf("%v", rec)}
			v = models.ValuedRecord{CompanyRecord: r, Failure: failure.Error()}
			e.logger.WithFields(logrus.Fields{
				"row_index": index,
				"name":      r.Name,
				"cause":     rec,
			}).Warn("Row evaluation failed, derived fields left absent")
		}
	}()
	return e.evaluate(r), nil
}

// Summarize counts absent values per derived field.
func Summarize(records []models.ValuedRecord, failures int, elapsed time.Duration) models.ValuationSummary {
	s := models.ValuationSummary{
		Rows:           len(records),
		Failures:       failures,
		AbsentByField:  make(map[string]int),
		DurationMillis: elapsed.Milliseconds(),
	}

	for _, r := range records {
		checks := []struct {
			field string
			value *float64
		}{
			{"enterprise_value", r.EnterpriseValue},
			{"ev_to_ebitda", r.EVToEBITDA},
			{"value_ev_ebitda", r.ValueEVEBITDA},
			{"value_revenue", r.ValueRevenue},
			{"value_pe", r.ValuePE},
			{"value_pb", r.ValuePB},
			{"final_expected_price", r.FinalExpectedPrice},
			{"gain_pct", r.GainPct},
		}
		for _, c := range checks {
			if c.value == nil {
				s.AbsentByField[c.field]++
			}
		}

		if r.FinalExpectedPrice != nil {
			s.FullyValued++
		} else {
			s.AbsentFinalPrice++
		}
	}
	return s
}
