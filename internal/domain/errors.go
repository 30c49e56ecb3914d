// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers.
var (
	ErrNotFound    = errors.New("pool not found")
	ErrInvalidDate = errors.New("invalid pool date")
	ErrCreate      = errors.New("pool creation failed")
	ErrDelete      = errors.New("pool deletion failed")
	ErrEncode      = errors.New("encode failed")
	ErrDecode      = errors.New("decode failed")
	ErrInvalidKey  = errors.New("invalid key")
)
