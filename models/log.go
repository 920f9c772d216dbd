package models

import (
	"time"

	"github.com/google/uuid"
)

// ValuationRun is the audit entry written after each engine run on a stored universe.
type ValuationRun struct {
	ID             uuid.UUID `json:"id"`
	UniverseID     uuid.UUID `json:"universe_id"`
	Rows           int       `json:"rows"`
	Valued         int       `json:"valued"`
	Absent         int       `json:"absent"`
	Failures       int       `json:"failures"`
	DurationMillis int64     `json:"duration_ms"`
	Timestamp      time.Time `json:"timestamp"`
}
