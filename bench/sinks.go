package bench

import (
	"cmp"
	"context"

	"github.com/tryfix/bucketjoin/admin"
	"github.com/tryfix/bucketjoin/backend"
	"github.com/tryfix/bucketjoin/backend/memory"
	"github.com/tryfix/bucketjoin/encoding"
	"github.com/tryfix/bucketjoin/join"
	"github.com/tryfix/bucketjoin/producer"
	"github.com/tryfix/bucketjoin/sink"
	"github.com/tryfix/bucketjoin/storage/sqlite"
	"github.com/tryfix/bucketjoin/tables"
)

// Sinks receive the bucket join results of a run. A nil sink discards them.
type Sinks struct {
	Tables     sink.Sink[string, tables.JoinResult]
	Aggregates sink.Sink[int, tables.AggregateResult]
	// Backends holds the stores of a memory sink, keyed by backend name.
	Backends map[string]backend.Backend
	closers  []func() error
}

func (s *Sinks) Close() error {
	for _, c := range s.closers {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}

// NewSinks builds the sinks config.Sink asks for.
func NewSinks(config *Config, db *sqlite.DB) (*Sinks, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	s := new(Sinks)

	switch config.Sink.Kind {
	case SinkSqlite:
		s.Tables = sink.Func[string, tables.JoinResult](func(ctx context.Context, records []join.Record[string, tables.JoinResult]) error {
			if err := db.ClearJoinResults(ctx); err != nil {
				return err
			}
			return db.SaveJoinResults(ctx, tables.Values(records))
		})
		s.Aggregates = sink.Func[int, tables.AggregateResult](func(ctx context.Context, records []join.Record[int, tables.AggregateResult]) error {
			if err := db.ClearAggregateResults(ctx); err != nil {
				return err
			}
			return db.SaveAggregateResults(ctx, tables.Values(records))
		})

	case SinkMemory:
		conf := memory.NewConfig()
		conf.Logger = config.Logger
		conf.MetricsReporter = config.MetricsReporter
		builder := memory.Builder(conf)

		joined, err := builder(`join_results`)
		if err != nil {
			return nil, err
		}

		aggregated, err := builder(`aggregate_results`)
		if err != nil {
			return nil, err
		}

		s.Backends = map[string]backend.Backend{joined.Name(): joined, aggregated.Name(): aggregated}
		s.Tables = replacing[string, tables.JoinResult](joined,
			sink.NewBackend[string, tables.JoinResult](joined, encoding.StringEncoder{}, encoding.NewJsonEncoder[tables.JoinResult]()))
		s.Aggregates = replacing[int, tables.AggregateResult](aggregated,
			sink.NewBackend[int, tables.AggregateResult](aggregated, encoding.IntEncoder{}, encoding.NewJsonEncoder[tables.AggregateResult]()))
		s.closers = append(s.closers, joined.Close, aggregated.Close)

	case SinkKafka:
		if config.Sink.CreateTopics {
			if err := createTopics(config); err != nil {
				return nil, err
			}
		}

		conf := producer.NewConfig()
		conf.Id = config.Id
		conf.BootstrapServers = config.Sink.Brokers
		conf.Logger = config.Logger
		conf.MetricsReporter = config.MetricsReporter

		p, err := producer.NewProducer(conf)
		if err != nil {
			return nil, err
		}

		if err := kafkaSinks(s, p, config); err != nil {
			p.Close()
			return nil, err
		}
		s.closers = append(s.closers, p.Close)
	}

	return s, nil
}

// replacing empties the backend before every write, so it holds the latest run only.
func replacing[K cmp.Ordered, O any](b backend.Backend, s sink.Sink[K, O]) sink.Sink[K, O] {
	return sink.Func[K, O](func(ctx context.Context, records []join.Record[K, O]) error {
		if err := b.Destroy(); err != nil {
			return err
		}
		return s.Write(ctx, records)
	})
}

func aggregatesTopic(config *Config) string {
	return config.Sink.Topic + `_aggregates`
}

func createTopics(config *Config) error {
	a, err := admin.NewKafkaAdmin(config.Sink.Brokers, admin.WithLogger(config.Logger))
	if err != nil {
		return err
	}
	defer a.Close()

	var topics []*admin.Topic
	for _, name := range []string{config.Sink.Topic, aggregatesTopic(config)} {
		topics = append(topics, &admin.Topic{
			Name:              name,
			NumPartitions:     config.Sink.Partitions,
			ReplicationFactor: config.Sink.ReplicationFactor,
		})
	}

	return a.EnsureTopics(topics)
}

// kafkaSinks publishes join results to Sink.Topic and aggregates to Sink.Topic_aggregates.
func kafkaSinks(s *Sinks, p producer.Producer, config *Config) error {
	tablesSink, err := sink.NewKafka[string, tables.JoinResult](p, &sink.KafkaConfig{
		Topic:     config.Sink.Topic,
		BatchSize: config.Sink.BatchSize,
		Keys:      encoding.StringEncoder{},
		Values:    encoding.NewJsonEncoder[tables.JoinResult](),
		Logger:    config.Logger,
	})
	if err != nil {
		return err
	}

	aggregatesSink, err := sink.NewKafka[int, tables.AggregateResult](p, &sink.KafkaConfig{
		Topic:     aggregatesTopic(config),
		BatchSize: config.Sink.BatchSize,
		Keys:      encoding.IntEncoder{},
		Values:    encoding.NewJsonEncoder[tables.AggregateResult](),
		Logger:    config.Logger,
	})
	if err != nil {
		return err
	}

	s.Tables = tablesSink
	s.Aggregates = aggregatesSink
	return nil
}
