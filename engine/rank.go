package engine

import (
	"sort"

	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/shared"
)

// DefaultLeaderboardSize is the number of rows shown per leaderboard.
const DefaultLeaderboardSize = 10

// ScreenThresholds filters a universe down to companies of meaningful size.
// Both comparisons are strict; rows with an absent value never pass.
type ScreenThresholds shared.ScreenConfig

// ScreensFrom returns the configured non-SME and SME screens.
func ScreensFrom(cfg shared.ScreensConfig) (nonSME, sme *ScreenThresholds) {
	n, s := ScreenThresholds(cfg.NonSME), ScreenThresholds(cfg.SME)
	return &n, &s
}

// Passes reports whether r clears both thresholds.
func (t ScreenThresholds) Passes(r models.CompanyRecord) bool {
	if r.Sales == nil || r.OperatingProfit == nil {
		return false
	}
	return *r.Sales > t.MinSales && *r.OperatingProfit > t.MinOperatingProfit
}

// Screen returns the rows that pass t, preserving order.
func Screen(rows []models.ValuedRecord, t ScreenThresholds) []models.ValuedRecord {
	out := make([]models.ValuedRecord, 0, len(rows))
	for _, r := range rows {
		if t.Passes(r.CompanyRecord) {
			out = append(out, r)
		}
	}
	return out
}

// Rank returns a copy of rows sorted by gain percentage, highest first.
// Rows without a gain keep their relative order after all ranked rows.
func Rank(rows []models.ValuedRecord) []models.ValuedRecord {
	out := make([]models.ValuedRecord, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := out[i].GainPct, out[j].GainPct
		switch {
		case gi == nil:
			return false
		case gj == nil:
			return true
		default:
			return *gi > *gj
		}
	})
	return out
}

// Partition splits rows into SME and non-SME listings. Rows whose SME flag is
// unknown belong to neither.
func Partition(rows []models.ValuedRecord) (sme, nonSME []models.ValuedRecord) {
	for _, r := range rows {
		switch r.Segment() {
		case models.SegmentSME:
			sme = append(sme, r)
		case models.SegmentNonSME:
			nonSME = append(nonSME, r)
		}
	}
	return sme, nonSME
}

// LeaderboardOptions selects one leaderboard out of a valued universe.
type LeaderboardOptions struct {
	// Segment is models.SegmentSME, models.SegmentNonSME, or empty for all rows.
	Segment string
	// Limit caps the number of rows; zero or negative means no cap.
	Limit int
	// Screen, when set, is applied before ranking.
	Screen *ScreenThresholds
}

// Leaderboard partitions, optionally screens, ranks and truncates rows.
func Leaderboard(rows []models.ValuedRecord, opts LeaderboardOptions) []models.ValuedRecord {
	selected := rows
	switch opts.Segment {
	case models.SegmentSME:
		selected, _ = Partition(rows)
	case models.SegmentNonSME:
		_, selected = Partition(rows)
	}

	if opts.Screen != nil {
		selected = Screen(selected, *opts.Screen)
	}

	ranked := Rank(selected)
	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked
}
