package join

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/tryfix/bucketjoin/worker_pool"
	"github.com/tryfix/log"
)

// Parallel spreads the distinct keys of both sides over a fixed number of
// workers and merges their results into canonical key order.
type Parallel[K cmp.Ordered, L, R, O any] struct {
	id       string
	strategy PartitionStrategy
	worker   *Worker[K, L, R, O]
	pool     *worker_pool.Pool
	logger   log.Logger
	metrics  *joinMetrics
}

func NewParallel[K cmp.Ordered, L, R, O any](combiner Combiner[K, L, R, O], config *Config) (*Parallel[K, L, R, O], error) {
	if combiner == nil {
		return nil, invalidArgument(`combiner cannot be nil`)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Parallel[K, L, R, O]{
		id:       config.Id,
		strategy: config.Strategy,
		worker:   NewWorker(combiner),
		pool:     config.pool,
		logger:   config.Logger.NewLog(log.Prefixed(`parallel`)),
		metrics:  config.metrics,
	}, nil
}

// Plan returns the key partitions a join with workerCount workers would use.
func (p *Parallel[K, L, R, O]) Plan(left []Row[K, L], right []Row[K, R], workerCount int) ([]KeyPartition[K], error) {
	if workerCount < 1 {
		return nil, invalidArgument(`worker count must be greater than 0, got %d`, workerCount)
	}

	return Partition(DistinctKeys(left, right), workerCount, p.strategy)
}

// Join runs exactly workerCount workers and returns once all of them finished.
// The result is stable sorted by key. Any worker failure fails the whole join.
func (p *Parallel[K, L, R, O]) Join(ctx context.Context, left []Row[K, L], right []Row[K, R], workerCount int) ([]Record[K, O], error) {
	begin := time.Now()

	partitions, err := p.Plan(left, right, workerCount)
	if err != nil {
		return nil, err
	}

	keysPerWorker := make([]int, workerCount)
	for i, part := range partitions {
		keysPerWorker[i] = len(part.Keys)
	}

	results := make([][]Record[K, O], workerCount)
	err = p.pool.RunN(ctx, workerCount, func(ctx context.Context, worker int) error {
		records, err := p.worker.Process(ctx, left, right, partitions[worker].Keys)
		if err != nil {
			return err
		}
		results[worker] = records
		return nil
	})
	if err != nil {
		return nil, fromPool(err, keysPerWorker)
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}

	out := make([]Record[K, O], 0, total)
	for _, r := range results {
		out = append(out, r...)
	}

	SortByKey(out)

	p.metrics.report(`parallel`, begin, len(out))
	p.logger.TraceContext(ctx, fmt.Sprintf(`%d workers joined %d keys into %d records in %s`,
		workerCount, sum(keysPerWorker), len(out), time.Since(begin)))

	return out, nil
}

func sum(vals []int) int {
	s := 0
	for _, v := range vals {
		s += v
	}
	return s
}

// WithWorkers binds a worker count so the parallel joiner satisfies Joiner.
func WithWorkers[K cmp.Ordered, L, R, O any](p *Parallel[K, L, R, O], workerCount int) Joiner[K, L, R, O] {
	return boundParallel[K, L, R, O]{parallel: p, workers: workerCount}
}

type boundParallel[K cmp.Ordered, L, R, O any] struct {
	parallel *Parallel[K, L, R, O]
	workers  int
}

func (b boundParallel[K, L, R, O]) Join(ctx context.Context, left []Row[K, L], right []Row[K, R]) ([]Record[K, O], error) {
	return b.parallel.Join(ctx, left, right, b.workers)
}
