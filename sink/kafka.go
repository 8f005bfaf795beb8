package sink

import (
	"cmp"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tryfix/bucketjoin/data"
	"github.com/tryfix/bucketjoin/encoding"
	"github.com/tryfix/bucketjoin/join"
	"github.com/tryfix/bucketjoin/producer"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

type KafkaConfig struct {
	Topic string
	// BatchSize caps the records sent in one produce request.
	BatchSize int
	Keys      encoding.Encoder
	Values    encoding.Encoder
	Logger    log.Logger
}

// Kafka publishes records to a topic in batches, one message per record.
type Kafka[K cmp.Ordered, O any] struct {
	producer producer.Producer
	config   *KafkaConfig
	logger   log.Logger
}

func NewKafka[K cmp.Ordered, O any](p producer.Producer, config *KafkaConfig) (*Kafka[K, O], error) {
	if config.Topic == `` {
		return nil, errors.New(`kafka sink topic cannot be empty`)
	}

	if config.BatchSize < 1 {
		return nil, errors.New(`kafka sink BatchSize should be greater than 0`)
	}

	if config.Keys == nil || config.Values == nil {
		return nil, errors.New(`kafka sink requires key and value encoders`)
	}

	if config.Logger == nil {
		config.Logger = log.NewNoopLogger()
	}

	return &Kafka[K, O]{
		producer: p,
		config:   config,
		logger:   config.Logger.NewLog(log.Prefixed(`kafka-sink`)),
	}, nil
}

// Write sends the records tagged with the run id found in ctx, if any.
func (k *Kafka[K, O]) Write(ctx context.Context, records []join.Record[K, O]) error {
	runId, _ := RunId(ctx)

	batch := make([]*data.Record, 0, k.config.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := k.producer.ProduceBatch(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, r := range records {
		key, err := k.config.Keys.Encode(r.Key)
		if err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`cannot encode key [%v]`, r.Key))
		}

		val, err := k.config.Values.Encode(r.Value)
		if err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`cannot encode value of [%v]`, r.Key))
		}

		batch = append(batch, &data.Record{
			Key:   key,
			Value: val,
			Topic: k.config.Topic,
			RunId: runId,
		})

		if len(batch) == k.config.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	k.logger.TraceContext(ctx, fmt.Sprintf(`%d records published to %s`, len(records), k.config.Topic))

	return nil
}

type runIdKey struct{}

// WithRunId attaches a benchmark run id to ctx.
func WithRunId(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIdKey{}, id)
}

func RunId(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIdKey{}).(uuid.UUID)
	return id, ok
}
