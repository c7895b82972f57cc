package store

import "errors"

var (
	// ErrNotFound is returned when a requested record is not found
	ErrNotFound = errors.New("not found")

	// ErrMissingConflictKey is returned when a restored row lacks its primary key
	ErrMissingConflictKey = errors.New("row is missing conflict key")
)
