/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

// Package backend is the ordered byte store that join rows and results can be
// kept in. Keys compare byte wise, so key encoders must preserve order.
package backend

import (
	"time"
)

type Builder func(name string) (Backend, error)

type Backend interface {
	Name() string
	// Set stores value under key. A zero expiry falls back to the backend expiry,
	// which is zero (never) unless SetExpiry changed it.
	Set(key []byte, value []byte, expiry time.Duration) error
	// Get returns nil for a missing or expired key.
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Len() int
	SetExpiry(expiry time.Duration)
	// Iterator walks all live keys ascending.
	Iterator() Iterator
	// RangeIterator covers keys in [fromKey, toKey). A nil bound is open.
	RangeIterator(fromKey []byte, toKey []byte) Iterator
	// Destroy drops every record, the backend stays usable.
	Destroy() error
	Close() error
}

// Iterator walks a snapshot of a Backend. Key and Value are only meaningful
// while Valid returns true.
type Iterator interface {
	SeekToFirst()
	SeekToLast()
	// Seek moves to the first key greater than or equal to key.
	Seek(key []byte)
	Next()
	Prev()
	Key() []byte
	Value() []byte
	Valid() bool
	// Error reports why the iterator is invalid from the start, e.g. a closed backend.
	Error() error
	Close()
}
