package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory groups failures by how callers react to them: the API maps
// categories to status codes, the scraper guard decides on retries.
type ErrorCategory string

const (
	ErrorCategoryConfiguration  ErrorCategory = "configuration"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryDatabase       ErrorCategory = "database"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryProcessing     ErrorCategory = "processing"
	ErrorCategoryResource       ErrorCategory = "resource"
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
)

// maxSampledFailures bounds how many row errors a run summary quotes.
const maxSampledFailures = 3

// ServiceError is a classified failure raised by a service, job or handler.
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError builds a ServiceError stamped with the current time.
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// NotFound reports a missing universe, portfolio or company.
func NotFound(serviceName, operation, what string) *ServiceError {
	return NewServiceError(ErrorCategoryNotFound, "NOT_FOUND", what+" not found", serviceName, operation, false, nil)
}

// WithDetails attaches data the API returns next to the message.
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// LogError logs e under its service's component name. Caller mistakes
// (validation, not found) are warnings; everything else is an error.
func (e *ServiceError) LogError() {
	entry := logrus.WithFields(logrus.Fields{
		"component":      e.ServiceName,
		"operation":      e.Operation,
		"error_category": e.Category,
		"error_code":     e.Code,
		"retryable":      e.Retryable,
	})
	if e.Details != nil {
		entry = entry.WithField("details", e.Details)
	}
	if e.Cause != nil {
		entry = entry.WithError(e.Cause)
	}

	switch e.Category {
	case ErrorCategoryValidation, ErrorCategoryNotFound:
		entry.Warn(e.Message)
	default:
		entry.Error(e.Message)
	}
}

// ErrorCategoryOf returns the category of the outermost ServiceError in err's chain, or "".
func ErrorCategoryOf(err error) ErrorCategory {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Category
	}
	return ""
}

// SummarizeRowFailures describes a valuation run in one line, quoting the
// first few row errors.
func SummarizeRowFailures(valued, failed int, samples []error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "valued %d rows, %d failed", valued, failed)

	n := len(samples)
	if n > maxSampledFailures {
		n = maxSampledFailures
	}
	for _, err := range samples[:n] {
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	if failed > n {
		fmt.Fprintf(&b, "; and %d more", failed-n)
	}
	return b.String()
}

// WrapError classifies err. An err that already carries a ServiceError keeps
// its category and code; only where it surfaced is updated.
func WrapError(err error, category ErrorCategory, code, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}

	return NewServiceError(category, code, err.Error(), serviceName, operation, retryable, err)
}

// transientMarkers are substrings of unclassified network errors worth retrying.
var transientMarkers = []string{
	"timeout", "connection refused", "connection reset",
	"temporary failure", "service unavailable", "too many requests",
	"network", "dns", "socket",
}

// IsRetryableError reports whether repeating the failed call may succeed.
// Cancellation is never retryable; a deadline is.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.IsRetryable()
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
