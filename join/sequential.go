package join

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/tryfix/log"
)

// Sequential is the single pass sort-merge bucket joiner. Both inputs must be
// ascending by key; unsorted input is not detected and yields an incomplete join.
type Sequential[K cmp.Ordered, L, R, O any] struct {
	id       string
	combiner Combiner[K, L, R, O]
	logger   log.Logger
	metrics  *joinMetrics
}

func NewSequential[K cmp.Ordered, L, R, O any](combiner Combiner[K, L, R, O], config *Config) (*Sequential[K, L, R, O], error) {
	if combiner == nil {
		return nil, invalidArgument(`combiner cannot be nil`)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Sequential[K, L, R, O]{
		id:       config.Id,
		combiner: combiner,
		logger:   config.Logger.NewLog(log.Prefixed(`sequential`)),
		metrics:  config.metrics,
	}, nil
}

// Join merges both sides with two cursors. Output is ascending by key.
func (s *Sequential[K, L, R, O]) Join(ctx context.Context, left []Row[K, L], right []Row[K, R]) ([]Record[K, O], error) {
	begin := time.Now()

	var out []Record[K, O]
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch c := cmp.Compare(left[i].Key, right[j].Key); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			if err := ctx.Err(); err != nil {
				return nil, canceled(err)
			}

			key := left[i].Key

			// the bucket is the run of left rows sharing key
			start := i
			for i < len(left) && cmp.Compare(left[i].Key, key) == 0 {
				i++
			}
			bucket := left[start:i]

			from := j
			for j < len(right) && cmp.Compare(right[j].Key, key) == 0 {
				j++
			}

			values, err := s.combiner.Combine(key, bucket, right[from:j])
			if err != nil {
				return nil, combineFailure(key, err)
			}

			for _, v := range values {
				out = append(out, Record[K, O]{Key: key, Value: v})
			}
		}
	}

	s.metrics.report(`sequential`, begin, len(out))
	s.logger.TraceContext(ctx, fmt.Sprintf(`joined %d left and %d right rows into %d records in %s`,
		len(left), len(right), len(out), time.Since(begin)))

	return out, nil
}
