package services

import (
	"testing"
	"time"

	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCompanyName(t *testing.T) {
	svc := NewUtilityService()

	assert.Equal(t, "reliance industries", svc.NormalizeCompanyName("Reliance Industries Ltd."))
	assert.Equal(t, "tata motors", svc.NormalizeCompanyName("  TATA <b>Motors</b>  Limited"))
	assert.Equal(t, "m m", svc.NormalizeCompanyName("M&M"))
	assert.Equal(t, "tata-motors", svc.GenerateSlug("Tata Motors Ltd"))
}

func TestFindCompany(t *testing.T) {
	svc := NewUtilityService()
	rows := []models.ValuedRecord{
		{CompanyRecord: models.CompanyRecord{Name: "Alpha Ltd", Code: "ALPHA"}},
		{CompanyRecord: models.CompanyRecord{Name: "Beta Industries", Code: "BETA"}},
		{CompanyRecord: models.CompanyRecord{Name: "Beta Industries Limited", Code: "BETA2"}},
	}

	got, ok := svc.FindCompany(rows, "Beta Industries Limited")
	require.True(t, ok)
	assert.Equal(t, "BETA2", got.Code, "exact names win")

	got, ok = svc.FindCompany(rows, "beta-industries")
	require.True(t, ok)
	assert.Equal(t, "BETA", got.Code, "first normalized match wins")

	got, ok = svc.FindCompany(rows, "NSE:ALPHA-EQ")
	require.True(t, ok)
	assert.Equal(t, "Alpha Ltd", got.Name)

	_, ok = svc.FindCompany(rows, "-")
	assert.False(t, ok)
	_, ok = svc.FindCompany(rows, "Gamma")
	assert.False(t, ok)

	lookups := svc.GetServiceMetrics()
	assert.Equal(t, int64(5), lookups.TotalRequests)
	assert.Equal(t, int64(1), lookups.Counter(LookupExact))
	assert.Equal(t, int64(2), lookups.Counter(LookupNormalized))
	assert.Equal(t, int64(1), lookups.Counter(LookupNotAvailable))
	assert.Equal(t, int64(1), lookups.Counter(LookupNoMatch))
	assert.InDelta(t, 60.0, lookups.GetSuccessRate(), 1e-9)
}

func TestCacheServiceEvictsLeastRecentlyUsedAndExpires(t *testing.T) {
	cache := NewCacheServiceWithConfig(time.Hour, 2)

	clock := time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }
	tick := func() { clock = clock.Add(time.Second) }

	cache.Set("a", 1)
	tick()
	cache.Set("b", 2)
	tick()
	_, ok := cache.Get("a")
	require.True(t, ok)
	tick()
	cache.Set("c", 3)

	_, ok = cache.Get("b")
	assert.False(t, ok, "b was used least recently")
	v, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	cache.Delete("c")
	cache.SetWithTTL("short", 1, time.Minute)
	clock = clock.Add(2 * time.Minute)
	_, ok = cache.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.CleanupExpired())

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)
}
