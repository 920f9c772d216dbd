package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/shared"
)

var (
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	htmlTagRegex      = regexp.MustCompile(`<[^>]*>`)
	nonPrintable      = regexp.MustCompile(`[^\x20-\x7E\p{L}\p{N}\p{P}\p{S}]`)
	nonAlphanumeric   = regexp.MustCompile(`[^a-z0-9]+`)
	legalNameSuffixes = []string{" ltd.", " ltd", " limited", " pvt.", " pvt", " private", " inc.", " inc", " corp.", " corp", " co."}
)

// Outcome counters recorded by FindCompany.
const (
	LookupExact        = "exact"
	LookupNormalized   = "normalized"
	LookupNoMatch      = "no_match"
	LookupNotAvailable = "not_available"
)

// UtilityService provides text normalization and company lookup helpers
type UtilityService struct {
	serviceMetrics *shared.ServiceMetrics
}

// NewUtilityService creates a new utility service instance
func NewUtilityService() *UtilityService {
	return &UtilityService{
		serviceMetrics: shared.NewServiceMetrics("Utility_Service"),
	}
}

// NormalizeCompanyName lowercases a name and strips punctuation and legal suffixes
// so "Reliance Industries Ltd." and "reliance industries" compare equal.
func (s *UtilityService) NormalizeCompanyName(name string) string {
	normalized := strings.ToLower(s.CleanCompanyText(name))
	for _, suffix := range legalNameSuffixes {
		normalized = strings.TrimSuffix(normalized, suffix)
	}
	normalized = nonAlphanumeric.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(normalized, " "))
}

// CleanCompanyText strips markup and non-printable characters and collapses whitespace
func (s *UtilityService) CleanCompanyText(text string) string {
	if text == "" {
		return ""
	}

	text = htmlTagRegex.ReplaceAllString(text, "")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	text = nonPrintable.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}

// IsNotAvailable reports placeholders such as "N/A", "-" or "--"
func (s *UtilityService) IsNotAvailable(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "-", "--", "n/a", "na", "nil", "null", "not available", "nan":
		return true
	}
	return false
}

// GenerateSlug creates URL-friendly identifiers: "Tata Motors Ltd" -> "tata-motors"
func (s *UtilityService) GenerateSlug(text string) string {
	if text == "" {
		return ""
	}
	return strings.ReplaceAll(s.NormalizeCompanyName(text), " ", "-")
}

// FindCompany locates a valued company by name, slug or instrument code.
// Exact matches win over normalized ones; the first row in table order wins ties.
func (s *UtilityService) FindCompany(rows []models.ValuedRecord, query string) (*models.ValuedRecord, bool) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if s.IsNotAvailable(query) {
		s.serviceMetrics.IncrementCounter(LookupNotAvailable)
		s.serviceMetrics.RecordRequest(false, time.Since(start))
		return nil, false
	}

	for i := range rows {
		if rows[i].Name == query {
			s.serviceMetrics.IncrementCounter(LookupExact)
			s.serviceMetrics.RecordRequest(true, time.Since(start))
			return &rows[i], true
		}
	}

	normalized := s.NormalizeCompanyName(query)
	slug := s.GenerateSlug(query)
	code := engine.NormalizeInstrumentCode(query)
	for i := range rows {
		r := &rows[i]
		if s.NormalizeCompanyName(r.Name) == normalized || s.GenerateSlug(r.Name) == slug ||
			(r.Code != "" && engine.NormalizeInstrumentCode(r.Code) == code) {
			s.serviceMetrics.IncrementCounter(LookupNormalized)
			s.serviceMetrics.RecordRequest(true, time.Since(start))
			return r, true
		}
	}

	s.serviceMetrics.IncrementCounter(LookupNoMatch)
	s.serviceMetrics.RecordRequest(false, time.Since(start))
	return nil, false
}

// GetServiceMetrics returns the company lookup counters, served by
// /admin/stats and logged at shutdown.
func (s *UtilityService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.serviceMetrics
}
