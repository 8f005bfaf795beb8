package join

import (
	"cmp"
)

// Combiner turns one matched bucket into output values. left and right hold
// every row of the key on each side, in input order. Implementations must not
// retain or modify the slices.
type Combiner[K cmp.Ordered, L, R, O any] interface {
	Combine(key K, left []Row[K, L], right []Row[K, R]) ([]O, error)
}

type CombinerFunc[K cmp.Ordered, L, R, O any] func(key K, left []Row[K, L], right []Row[K, R]) ([]O, error)

func (fn CombinerFunc[K, L, R, O]) Combine(key K, left []Row[K, L], right []Row[K, R]) ([]O, error) {
	return fn(key, left, right)
}

type ValueMapper[K cmp.Ordered, L, R, O any] func(key K, left L, right R) (O, error)

// Pairwise emits one value per (left, right) pair of a bucket. Pairs are
// visited right row first, then every left row of the bucket.
func Pairwise[K cmp.Ordered, L, R, O any](mapper ValueMapper[K, L, R, O]) Combiner[K, L, R, O] {
	return CombinerFunc[K, L, R, O](func(key K, left []Row[K, L], right []Row[K, R]) ([]O, error) {
		if len(left) == 0 || len(right) == 0 {
			return nil, nil
		}

		out := make([]O, 0, len(left)*len(right))
		for _, r := range right {
			for _, l := range left {
				v, err := mapper(key, l.Payload, r.Payload)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		}

		return out, nil
	})
}
