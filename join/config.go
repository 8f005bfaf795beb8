package join

import (
	"runtime"
	"time"

	"github.com/tryfix/bucketjoin/worker_pool"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type Config struct {
	// Id names the joiner in logs and metric labels.
	Id string
	// Strategy decides how keys are spread over parallel workers.
	Strategy PartitionStrategy
	// Timeout bounds a parallel join. Zero waits forever.
	Timeout         time.Duration
	Logger          log.Logger
	MetricsReporter metrics.Reporter
	metrics         *joinMetrics
	pool            *worker_pool.Pool
}

func NewConfig() *Config {
	c := new(Config)
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	c.Id = `bucket_join`
	c.Strategy = RoundRobin
	c.Logger = log.NewNoopLogger()
	c.MetricsReporter = metrics.NoopReporter()
}

func (c *Config) validate() error {
	if c.Strategy < RoundRobin || c.Strategy > HashByKey {
		return invalidArgument(`unknown partition strategy [%d]`, c.Strategy)
	}

	if c.Timeout < 0 {
		return invalidArgument(`timeout cannot be negative`)
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}

	// joiners built from one config share their metrics and pool
	if c.metrics == nil {
		c.metrics = newJoinMetrics(c.MetricsReporter, c.Id)
	}

	if c.pool == nil {
		pool, err := worker_pool.NewPool(c.Id, c.MetricsReporter, c.Logger, &worker_pool.PoolConfig{
			NumOfWorkers: runtime.GOMAXPROCS(0),
			Timeout:      c.Timeout,
		})
		if err != nil {
			return err
		}
		c.pool = pool
	}

	return nil
}

type joinMetrics struct {
	latency metrics.Observer
	records metrics.Counter
}

func newJoinMetrics(reporter metrics.Reporter, id string) *joinMetrics {
	labels := []string{`joiner`}
	return &joinMetrics{
		latency: reporter.Observer(metrics.MetricConf{
			Path:        `bucket_join_latency_microseconds`,
			Labels:      labels,
			ConstLabels: map[string]string{`joiner_id`: id},
		}),
		records: reporter.Counter(metrics.MetricConf{
			Path:        `bucket_join_records`,
			Labels:      labels,
			ConstLabels: map[string]string{`joiner_id`: id},
		}),
	}
}

func (m *joinMetrics) report(joiner string, begin time.Time, records int) {
	m.latency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), map[string]string{`joiner`: joiner})
	m.records.Count(float64(records), map[string]string{`joiner`: joiner})
}
