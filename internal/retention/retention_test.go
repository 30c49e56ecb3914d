package retention

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haukened/padkey/internal/domain"
)

func januaryIDs(n int) []domain.PoolID {
	ids := make([]domain.PoolID, 0, n)
	for d := 1; d <= n; d++ {
		ids = append(ids, domain.PoolID(fmt.Sprintf("2024-01-%02d", d)))
	}
	return ids
}

func TestSelectKeepsNewest(t *testing.T) {
	got := Select(domain.ModeDaily, 3, januaryIDs(10))
	want := []domain.PoolID{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07"}
	assert.Equal(t, want, got)
}

func TestSelectUnsortedInput(t *testing.T) {
	ids := []domain.PoolID{"2024-01-05", "2024-01-01", "2024-01-03", "2024-01-04", "2024-01-02"}
	assert.Equal(t, []domain.PoolID{"2024-01-01", "2024-01-02"}, Select(domain.ModeDaily, 3, ids))
}

func TestSelectIndefinite(t *testing.T) {
	assert.Empty(t, Select(domain.ModeDaily, -1, januaryIDs(31)))
}

func TestSelectSingleModeNeverEvicts(t *testing.T) {
	for _, days := range []int{-1, 0, 1, 3, 100} {
		assert.Empty(t, Select(domain.ModeSingle, days, januaryIDs(10)), "daysToKeep=%d", days)
	}
}

func TestSelectZeroAndOneKeepNewest(t *testing.T) {
	for _, days := range []int{0, 1} {
		got := Select(domain.ModeDaily, days, januaryIDs(4))
		assert.Equal(t, []domain.PoolID{"2024-01-01", "2024-01-02", "2024-01-03"}, got, "daysToKeep=%d", days)
	}
}

func TestSelectWithinLimit(t *testing.T) {
	assert.Empty(t, Select(domain.ModeDaily, 7, januaryIDs(7)))
	assert.Empty(t, Select(domain.ModeDaily, 7, nil))
}

func TestSelectCountsStoredPoolsNotDays(t *testing.T) {
	// A month-long gap still keeps both pools.
	ids := []domain.PoolID{"2024-01-01", "2024-02-15"}
	assert.Empty(t, Select(domain.ModeDaily, 2, ids))
}

func TestSelectIgnoresSingleID(t *testing.T) {
	ids := append(januaryIDs(3), domain.SinglePoolID)
	assert.Equal(t, []domain.PoolID{"2024-01-01", "2024-01-02"}, Select(domain.ModeDaily, 1, ids))
}

func TestEffective(t *testing.T) {
	assert.Equal(t, -1, Effective(-1))
	assert.Equal(t, 1, Effective(0))
	assert.Equal(t, 1, Effective(1))
	assert.Equal(t, 5, Effective(5))
	assert.Equal(t, 1, Effective(-4))
}
