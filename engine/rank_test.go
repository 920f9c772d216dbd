package engine

import (
	"testing"

	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valued(name string, gain *float64, sme *bool, sales, opProfit *float64) models.ValuedRecord {
	return models.ValuedRecord{
		CompanyRecord: models.CompanyRecord{
			Name:            name,
			IsSME:           sme,
			Sales:           sales,
			OperatingProfit: opProfit,
		},
		GainPct: gain,
	}
}

func names(rows []models.ValuedRecord) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestRankDescendingWithAbsentLast(t *testing.T) {
	rows := []models.ValuedRecord{
		valued("a", nil, nil, nil, nil),
		valued("b", models.Float(10), nil, nil, nil),
		valued("c", models.Float(-5), nil, nil, nil),
		valued("d", nil, nil, nil, nil),
		valued("e", models.Float(40), nil, nil, nil),
		valued("f", models.Float(10), nil, nil, nil),
	}

	ranked := Rank(rows)
	assert.Equal(t, []string{"e", "b", "f", "c", "a", "d"}, names(ranked))
	assert.Equal(t, "a", rows[0].Name, "input must not be reordered")
}

func TestPartitionSkipsUnknownSegment(t *testing.T) {
	rows := []models.ValuedRecord{
		valued("sme", nil, models.Bool(true), nil, nil),
		valued("main", nil, models.Bool(false), nil, nil),
		valued("unknown", nil, nil, nil, nil),
	}

	sme, nonSME := Partition(rows)
	assert.Equal(t, []string{"sme"}, names(sme))
	assert.Equal(t, []string{"main"}, names(nonSME))
}

func TestScreenIsStrict(t *testing.T) {
	rows := []models.ValuedRecord{
		valued("pass", nil, nil, models.Float(51), models.Float(11)),
		valued("equal sales", nil, nil, models.Float(50), models.Float(11)),
		valued("equal profit", nil, nil, models.Float(51), models.Float(10)),
		valued("missing", nil, nil, nil, models.Float(100)),
	}

	nonSME, sme := ScreensFrom(shared.NewDefaultUnifiedConfiguration().Screens)
	assert.Equal(t, []string{"pass"}, names(Screen(rows, *nonSME)))
	assert.Equal(t, []string{"pass", "equal sales", "equal profit"}, names(Screen(rows, *sme)))
}

func TestLeaderboard(t *testing.T) {
	var rows []models.ValuedRecord
	for i := 0; i < 15; i++ {
		rows = append(rows, valued(
			string(rune('a'+i)),
			models.Float(float64(i)),
			models.Bool(i%2 == 0),
			models.Float(float64(i)),
			models.Float(float64(i)),
		))
	}

	top := Leaderboard(rows, LeaderboardOptions{Segment: models.SegmentSME, Limit: 3})
	require.Len(t, top, 3)
	assert.Equal(t, []string{"o", "m", "k"}, names(top))

	screened := Leaderboard(rows, LeaderboardOptions{
		Segment: models.SegmentNonSME,
		Screen:  &ScreenThresholds{MinSales: 8, MinOperatingProfit: 8},
	})
	assert.Equal(t, []string{"n", "l", "j"}, names(screened))

	assert.Len(t, Leaderboard(rows, LeaderboardOptions{}), 15)
}
