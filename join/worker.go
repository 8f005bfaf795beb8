package join

import (
	"cmp"
	"context"
)

// Worker joins the rows of an assigned key subset. It reads its inputs only, so
// any number of workers may process disjoint subsets of the same rows at once.
type Worker[K cmp.Ordered, L, R, O any] struct {
	combiner Combiner[K, L, R, O]
}

func NewWorker[K cmp.Ordered, L, R, O any](combiner Combiner[K, L, R, O]) *Worker[K, L, R, O] {
	return &Worker[K, L, R, O]{combiner: combiner}
}

// Process hash-groups both sides on the keys of the subset and combines every key
// present on both sides. Row order does not matter, rows of one key keep their input
// order. Records come out in the order of keys.
func (w *Worker[K, L, R, O]) Process(ctx context.Context, left []Row[K, L], right []Row[K, R], keys []K) ([]Record[K, O], error) {
	if len(keys) == 0 {
		return nil, nil
	}

	assigned := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		assigned[k] = struct{}{}
	}

	leftGroups := groupRows(left, assigned)
	rightGroups := groupRows(right, assigned)

	var out []Record[K, O]
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		l, ok := leftGroups[k]
		if !ok {
			continue
		}

		r, ok := rightGroups[k]
		if !ok {
			continue
		}

		values, err := w.combiner.Combine(k, l, r)
		if err != nil {
			return nil, combineFailure(k, err)
		}

		for _, v := range values {
			out = append(out, Record[K, O]{Key: k, Value: v})
		}
	}

	return out, nil
}

func groupRows[K cmp.Ordered, P any](rows []Row[K, P], assigned map[K]struct{}) map[K][]Row[K, P] {
	groups := make(map[K][]Row[K, P])
	for _, r := range rows {
		if _, ok := assigned[r.Key]; !ok {
			continue
		}
		groups[r.Key] = append(groups[r.Key], r)
	}

	return groups
}
