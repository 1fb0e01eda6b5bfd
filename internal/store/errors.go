package store

import "errors"

var (
	// ErrEmptyStore is returned by Last when the partition has no records.
	ErrEmptyStore = errors.New("store is empty")

	// ErrInvalidRange is returned by Delete when neither bound is set.
	ErrInvalidRange = errors.New("delete range requires a lower or upper bound")

	// ErrStoreUnavailable is returned by reads once the log failed to open.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrClosed is returned by reads on a closed log.
	ErrClosed = errors.New("log closed")

	// ErrEmptyKey is returned when a store key is empty.
	ErrEmptyKey = errors.New("store key must not be empty")
)
