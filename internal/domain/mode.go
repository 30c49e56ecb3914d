// Package domain mode.go contains the pool mode and current identifier resolution.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how pools are named and rotated.
type Mode string

const (
	// ModeDaily keeps one pool per UTC day, rotated at midnight and evicted by retention.
	ModeDaily Mode = "daily"
	// ModeSingle keeps one eternal pool that is never rotated or evicted.
	ModeSingle Mode = "single"
)

// KeepForever is the DaysToKeep value that disables eviction in daily mode.
const KeepForever = -1

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDaily:
		return ModeDaily, nil
	case ModeSingle:
		return ModeSingle, nil
	}
	return "", fmt.Errorf("unknown pool mode %q", s)
}

// String returns the string form of the Mode.
func (m Mode) String() string { return string(m) }

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeDaily || m == ModeSingle }

// CurrentID returns the identifier of the pool that should exist at now.
func (m Mode) CurrentID(now time.Time) PoolID {
	if m == ModeSingle {
		return SinglePoolID
	}
	return DateID(now)
}

// Resolve maps a caller-supplied date to the identifier that serves it.
// Single mode ignores the date entirely. Daily mode validates it.
func (m Mode) Resolve(date string) (PoolID, error) {
	if m == ModeSingle {
		return SinglePoolID, nil
	}
	return ParseDate(date)
}
