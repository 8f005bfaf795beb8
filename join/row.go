/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package join

import (
	"cmp"
	"context"
	"slices"
)

// Row is one input tuple of a join side. Rows are read only once handed to a joiner.
type Row[K cmp.Ordered, P any] struct {
	Key     K
	Payload P
}

// Record is one joined output unit.
type Record[K cmp.Ordered, O any] struct {
	Key   K
	Value O
}

// Joiner joins two key sorted row lists.
type Joiner[K cmp.Ordered, L, R, O any] interface {
	Join(ctx context.Context, left []Row[K, L], right []Row[K, R]) ([]Record[K, O], error)
}

// SortByKey brings records into canonical order. The sort is stable so records
// sharing a key keep the order they were produced in.
func SortByKey[K cmp.Ordered, O any](records []Record[K, O]) {
	slices.SortStableFunc(records, func(a, b Record[K, O]) int {
		return cmp.Compare(a.Key, b.Key)
	})
}

// IsSorted reports whether rows are ascending by key.
func IsSorted[K cmp.Ordered, P any](rows []Row[K, P]) bool {
	return slices.IsSortedFunc(rows, func(a, b Row[K, P]) int {
		return cmp.Compare(a.Key, b.Key)
	})
}

// SortRows sorts rows ascending by key, keeping the relative order of equal keys.
func SortRows[K cmp.Ordered, P any](rows []Row[K, P]) {
	slices.SortStableFunc(rows, func(a, b Row[K, P]) int {
		return cmp.Compare(a.Key, b.Key)
	})
}
