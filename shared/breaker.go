package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures an upstream circuit breaker.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

// UpstreamBreaker guards calls to a flaky upstream. Once ConsecutiveFailures
// calls fail in a row it rejects calls until Cooldown elapses, then lets one probe through.
type UpstreamBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewUpstreamBreaker builds a breaker from settings, filling zero values.
func NewUpstreamBreaker(s BreakerSettings) *UpstreamBreaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 3
	}
	if s.Cooldown <= 0 {
		s.Cooldown = time.Minute
	}
	threshold := s.ConsecutiveFailures

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"component": "UpstreamBreaker",
				"breaker":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return &UpstreamBreaker{name: s.Name, cb: cb}
}

// Execute runs fn through the breaker. A rejected call returns a retryable
// resource ServiceError wrapping gobreaker.ErrOpenState or ErrTooManyRequests.
func (b *UpstreamBreaker) Execute(operation string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, NewServiceError(ErrorCategoryResource, "UPSTREAM_UNAVAILABLE",
			fmt.Sprintf("%s is temporarily unavailable", b.name), b.name, operation, true, err)
	}
	return result, err
}

// State reports the breaker state as "closed", "half-open" or "open".
func (b *UpstreamBreaker) State() string {
	return b.cb.State().String()
}
