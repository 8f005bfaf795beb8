package tables

import (
	"cmp"
	"math"
	"slices"
)

// SortJoinResults orders results by every column, the order the SQLite store
// reads them back in.
func SortJoinResults(results []JoinResult) {
	slices.SortFunc(results, func(a, b JoinResult) int {
		return cmp.Or(
			cmp.Compare(a.KeyField, b.KeyField),
			cmp.Compare(a.Value1, b.Value1),
			cmp.Compare(a.Value3, b.Value3),
			cmp.Compare(a.TotalValue, b.TotalValue),
			cmp.Compare(a.Description, b.Description),
			cmp.Compare(a.Status, b.Status),
		)
	})
}

func SortAggregateResults(results []AggregateResult) {
	slices.SortFunc(results, func(a, b AggregateResult) int {
		return cmp.Or(
			cmp.Compare(a.RKey, b.RKey),
			cmp.Compare(a.RText, b.RText),
			cmp.Compare(a.NumAvg, b.NumAvg),
		)
	})
}

// SameJoinResults reports whether both lists hold the same multiset of results.
func SameJoinResults(a, b []JoinResult) bool {
	if len(a) != len(b) {
		return false
	}

	a, b = slices.Clone(a), slices.Clone(b)
	SortJoinResults(a)
	SortJoinResults(b)

	return slices.Equal(a, b)
}

// SameAggregateResults compares aggregates by key. Averages may differ by
// epsilon, relative to their magnitude, since engines sum in different orders.
func SameAggregateResults(a, b []AggregateResult, epsilon float64) bool {
	if len(a) != len(b) {
		return false
	}

	a, b = slices.Clone(a), slices.Clone(b)
	SortAggregateResults(a)
	SortAggregateResults(b)

	for i := range a {
		if a[i].RKey != b[i].RKey || a[i].RText != b[i].RText {
			return false
		}

		if math.Abs(a[i].NumAvg-b[i].NumAvg) > epsilon*math.Max(1, math.Abs(a[i].NumAvg)) {
			return false
		}
	}

	return true
}
