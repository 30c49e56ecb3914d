// Package retention decides which daily pools to evict.
package retention

import (
	"sort"

	"github.com/haukened/padkey/internal/domain"
)

// Effective returns the number of daily pools kept for daysToKeep, or -1 if
// every pool is kept. Zero and one both keep only the newest pool.
func Effective(daysToKeep int) int {
	if daysToKeep == domain.KeepForever {
		return -1
	}
	return max(1, daysToKeep)
}

// Select returns the identifiers to delete, oldest first. Only daily mode
// evicts, and only date identifiers are considered. Retention counts stored
// pools rather than elapsed days, so a gap in creation never causes extra
// deletions.
func Select(mode domain.Mode, daysToKeep int, ids []domain.PoolID) []domain.PoolID {
	if mode != domain.ModeDaily {
		return nil
	}
	keep := Effective(daysToKeep)
	if keep < 0 {
		return nil
	}
	daily := make([]domain.PoolID, 0, len(ids))
	for _, id := range ids {
		if id.IsDaily() {
			daily = append(daily, id)
		}
	}
	if len(daily) <= keep {
		return nil
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i] < daily[j] })
	return daily[:len(daily)-keep]
}
