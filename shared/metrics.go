package shared

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// MetricsRegistry holds the Prometheus collectors exported by the backend.
// All recording methods are safe to call on a nil registry.
type MetricsRegistry struct {
	registry *prometheus.Registry

	ValuationRuns   *prometheus.CounterVec
	RowsValued      *prometheus.CounterVec
	AbsentValues    *prometheus.CounterVec
	RowFailures     prometheus.Counter
	RunDuration     prometheus.Histogram
	ScrapeAttempts  *prometheus.CounterVec
	ScrapeDuration  *prometheus.HistogramVec
	PortfolioReview *prometheus.CounterVec
}

// NewMetricsRegistry creates a registry with every collector registered.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		ValuationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valuation_runs_total",
				Help: "Total number of valuation engine runs by outcome",
			},
			[]string{"outcome"},
		),

		RowsValued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valuation_rows_total",
				Help: "Rows evaluated by the engine, split by whether a final price was produced",
			},
			[]string{"result"},
		),

		AbsentValues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valuation_absent_values_total",
				Help: "Derived values that could not be computed, by field",
			},
			[]string{"field"},
		),

		RowFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "valuation_row_failures_total",
				Help: "Rows whose evaluation failed unexpectedly",
			},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "valuation_run_duration_seconds",
				Help:    "Wall time of a full engine run",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
		),

		ScrapeAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_fetch_attempts_total",
				Help: "Universe download attempts by fetcher and result",
			},
			[]string{"fetcher", "result"},
		),

		ScrapeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_fetch_duration_seconds",
				Help:    "Duration of universe downloads",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"fetcher"},
		),

		PortfolioReview: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_review_rows_total",
				Help: "Portfolio rows produced by recommendation",
			},
			[]string{"recommendation"},
		),
	}

	m.registry.MustRegister(
		m.ValuationRuns,
		m.RowsValued,
		m.AbsentValues,
		m.RowFailures,
		m.RunDuration,
		m.ScrapeAttempts,
		m.ScrapeDuration,
		m.PortfolioReview,
	)

	return m
}

// Handler returns the HTTP exposition handler for this registry.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordValuationRun records the outcome of one engine run.
func (m *MetricsRegistry) RecordValuationRun(outcome string, valued, unvalued, failures int, absentByField map[string]int, duration time.Duration) {
	if m == nil {
		return
	}
	m.ValuationRuns.WithLabelValues(outcome).Inc()
	m.RowsValued.WithLabelValues("valued").Add(float64(valued))
	m.RowsValued.WithLabelValues("unvalued").Add(float64(unvalued))
	m.RowFailures.Add(float64(failures))
	for field, count := range absentByField {
		m.AbsentValues.WithLabelValues(field).Add(float64(count))
	}
	m.RunDuration.Observe(duration.Seconds())
}

// RecordScrape records one universe download attempt.
func (m *MetricsRegistry) RecordScrape(fetcher string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.ScrapeAttempts.WithLabelValues(fetcher, result).Inc()
	m.ScrapeDuration.WithLabelValues(fetcher).Observe(duration.Seconds())
}

// RecordRecommendation counts one reviewed holding.
func (m *MetricsRegistry) RecordRecommendation(recommendation string) {
	if m == nil {
		return
	}
	if recommendation == "" {
		recommendation = "none"
	}
	m.PortfolioReview.WithLabelValues(recommendation).Inc()
}

// ServiceMetrics tracks in-process request counts for a single service.
// It backs the operational summaries logged by long-running components.
type ServiceMetrics struct {
	ServiceName         string           `json:"service_name"`
	TotalRequests       int64            `json:"total_requests"`
	SuccessfulRequests  int64            `json:"successful_requests"`
	FailedRequests      int64            `json:"failed_requests"`
	TotalProcessingTime time.Duration    `json:"total_processing_time"`
	LastUpdated         time.Time        `json:"last_updated"`
	Counters            map[string]int64 `json:"counters"`
	mutex               sync.RWMutex
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		ServiceName: serviceName,
		LastUpdated: time.Now(),
		Counters:    make(map[string]int64),
	}
}

// RecordRequest records a request with its success status and processing time
func (m *ServiceMetrics) RecordRequest(success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRequests++
	m.TotalProcessingTime += processingTime
	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
	}
	m.LastUpdated = time.Now()
}

// IncrementCounter bumps a named counter.
func (m *ServiceMetrics) IncrementCounter(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Counters[key]++
}

// Counter returns the current value of a named counter.
func (m *ServiceMetrics) Counter(key string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.Counters[key]
}

// GetSuccessRate returns the success rate as a percentage
func (m *ServiceMetrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalRequests == 0 {
		return 0.0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100.0
}

// LogSummary logs the current counters at info level.
func (m *ServiceMetrics) LogSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var avg time.Duration
	if m.TotalRequests > 0 {
		avg = time.Duration(int64(m.TotalProcessingTime) / m.TotalRequests)
	}

	logrus.WithFields(logrus.Fields{
		"service_name":        m.ServiceName,
		"total_requests":      m.TotalRequests,
		"successful_requests": m.SuccessfulRequests,
		"failed_requests":     m.FailedRequests,
		"avg_processing_time": avg,
		"counters":            m.Counters,
	}).Info("Service metrics summary")
}
