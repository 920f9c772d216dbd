package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	UniverseSourceUpload = "upload"
	UniverseSourceScrape = "scrape"
)

// Universe is a stored fundamentals export. The raw CSV is kept as
// uploaded so that every valuation is recomputed from source.
type Universe struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	RowCount  int       `json:"row_count"`
	RawCSV    []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
