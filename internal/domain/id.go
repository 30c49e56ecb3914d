// Package domain id.go contains functions to parse, validate, and resolve pool identifiers
package domain

import (
	"time"
)

// DateLayout is the canonical layout of a daily pool identifier.
const DateLayout = "2006-01-02"

// SinglePoolID identifies the one eternal pool used in single mode.
const SinglePoolID PoolID = "single"

// PoolID identifies a stored pool. It is either SinglePoolID or a UTC
// calendar date in DateLayout form. Date identifiers sort chronologically
// under plain string comparison.
type PoolID string

// ParseDate validates s as a daily pool identifier. The value must parse
// with DateLayout and format back to exactly s, which rules out path
// separators and non-canonical forms such as "2024-1-2".
// Returns ErrInvalidDate on failure.
func ParseDate(s string) (PoolID, error) {
	if !isDate(s) {
		return "", ErrInvalidDate
	}
	return PoolID(s), nil
}

// DateID returns the daily identifier for the UTC calendar day containing t.
func DateID(t time.Time) PoolID { return PoolID(t.UTC().Format(DateLayout)) }

// String returns the string form of the PoolID.
func (id PoolID) String() string { return string(id) }

// IsDaily reports whether id is a date identifier.
func (id PoolID) IsDaily() bool { return isDate(string(id)) }

// Valid reports whether id is either SinglePoolID or a date identifier.
func (id PoolID) Valid() bool { return id == SinglePoolID || id.IsDaily() }

func isDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return false
	}
	return t.Format(DateLayout) == s
}
