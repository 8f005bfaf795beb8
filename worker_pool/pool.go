package worker_pool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	"golang.org/x/sync/errgroup"
)

// Task is the unit of work of one worker. A task only writes state owned by its worker id.
type Task func(ctx context.Context, worker int) error

type PoolConfig struct {
	NumOfWorkers int
	// Timeout bounds a whole Run. Zero disables it.
	Timeout time.Duration
}

type WorkerError struct {
	Worker int
	Err    error
}

// Failure aggregates every failed worker of a Run.
type Failure struct {
	Errors []WorkerError
}

func (f *Failure) Error() string {
	msgs := make([]string, 0, len(f.Errors))
	for _, e := range f.Errors {
		msgs = append(msgs, fmt.Sprintf(`worker-%d: %s`, e.Worker, e.Err))
	}

	return fmt.Sprintf(`%d workers failed [%s]`, len(f.Errors), strings.Join(msgs, `, `))
}

// Pool runs a fixed number of workers per Run and blocks until all of them returned.
type Pool struct {
	id      string
	size    int
	timeout time.Duration
	logger  log.Logger
	metrics struct {
		workerLatency metrics.Observer
		failures      metrics.Counter
	}
}

func NewPool(id string, metricsReporter metrics.Reporter, logger log.Logger, config *PoolConfig) (*Pool, error) {
	if config.NumOfWorkers < 1 {
		return nil, errors.New(`pool NumOfWorkers should be greater than 0`)
	}

	if config.Timeout < 0 {
		return nil, errors.New(`pool Timeout cannot be negative`)
	}

	p := &Pool{
		id:      id,
		size:    config.NumOfWorkers,
		timeout: config.Timeout,
		logger:  logger.NewLog(log.Prefixed(`pool`)),
	}

	labels := []string{`pool_id`, `worker`}
	p.metrics.workerLatency = metricsReporter.Observer(metrics.MetricConf{
		Path:   `bucket_join_pool_worker_latency_microseconds`,
		Labels: labels,
	})
	p.metrics.failures = metricsReporter.Counter(metrics.MetricConf{
		Path:   `bucket_join_pool_worker_failures`,
		Labels: labels,
	})

	return p, nil
}

func (p *Pool) Size() int {
	return p.size
}

// Run runs the task on the configured number of workers.
func (p *Pool) Run(ctx context.Context, task Task) error {
	return p.RunN(ctx, p.size, task)
}

// RunN starts exactly n workers and waits for all of them. It returns ctx.Err() when the
// context ends first, and a *Failure listing every worker that returned an error or panicked.
func (p *Pool) RunN(ctx context.Context, n int, task Task) error {
	if n < 1 {
		return errors.New(fmt.Sprintf(`invalid number of workers [%d]`, n))
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	results := make([]error, n)
	for i := 0; i < n; i++ {
		worker := i
		group.Go(func() error {
			err := p.run(groupCtx, worker, task)
			results[worker] = err
			return err
		})
	}

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn(fmt.Sprintf(`pool [%s] stopped waiting for %d workers due to %s`, p.id, n, ctx.Err()))
		return ctx.Err()
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	failure := new(Failure)
	for worker, err := range results {
		// siblings of a failed worker only see the group being canceled
		if err == nil || err == context.Canceled {
			continue
		}
		failure.Errors = append(failure.Errors, WorkerError{Worker: worker, Err: err})
	}

	if len(failure.Errors) == 0 {
		return nil
	}

	return failure
}

func (p *Pool) run(ctx context.Context, worker int, task Task) (err error) {
	labels := map[string]string{`pool_id`: p.id, `worker`: fmt.Sprint(worker)}

	defer func(begin time.Time) {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprintf(`worker panicked: %v`, r))
		}

		if err != nil {
			p.metrics.failures.Count(1, labels)
			p.logger.ErrorContext(ctx, fmt.Sprintf(`worker-%d failed due to %s`, worker, err))
		}

		p.metrics.workerLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), labels)
	}(time.Now())

	return task(ctx, worker)
}
