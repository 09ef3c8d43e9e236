package models

import "errors"

var (
	// ErrDuplicateKeyword is returned when a keyword with the same normalized text is already watched.
	ErrDuplicateKeyword = errors.New("duplicate keyword")
	// ErrNotFound is returned when a keyword (or another stored record) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for empty keyword text, bad sort keys, and malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable wraps failures of the arXiv provider.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
