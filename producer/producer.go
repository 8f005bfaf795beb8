/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/tryfix/bucketjoin/data"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type RequiredAcks int

const (
	// NoResponse doesn't send any response, the TCP ACK is all you get.
	NoResponse RequiredAcks = 0

	// WaitForLeader waits for only the local commit to succeed before responding.
	WaitForLeader RequiredAcks = 1

	// WaitForAll waits for all in-sync replicas to commit before responding.
	WaitForAll RequiredAcks = -1
)

func (ack RequiredAcks) String() string {
	switch ack {
	case WaitForLeader:
		return `WaitForLeader`
	case WaitForAll:
		return `WaitForAll`
	}
	return `NoResponse`
}

type Partitioner int

const (
	HashBased Partitioner = iota
	Manual
	Random
)

func (p Partitioner) String() string {
	switch p {
	case Manual:
		return `Manual`
	case Random:
		return `Random`
	}
	return `HashBased`
}

type Producer interface {
	Produce(ctx context.Context, message *data.Record) (partition int32, offset int64, err error)
	ProduceBatch(ctx context.Context, messages []*data.Record) error
	Close() error
}

type saramaProducer struct {
	id             string
	saramaProducer sarama.SyncProducer
	logger         log.Logger
	metrics        *metricsReporter
}

type metricsReporter struct {
	produceLatency      metrics.Observer
	batchProduceLatency metrics.Observer
}

// NewProducer connects a sync producer to the configured brokers.
func NewProducer(configs *Config) (Producer, error) {
	if err := configs.validate(); err != nil {
		return nil, err
	}

	configs.Logger.Info(`producer [` + configs.Id + `] initiating...`)
	prd, err := sarama.NewSyncProducer(configs.BootstrapServers, configs.Config)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`[%s] init failed`, configs.Id))
	}
	defer configs.Logger.Info(`producer [` + configs.Id + `] initiated`)

	return newSaramaProducer(configs, prd), nil
}

// NewProducerFrom wraps an existing sync producer, such as a sarama mock.
func NewProducerFrom(configs *Config, prd sarama.SyncProducer) (Producer, error) {
	if err := configs.validate(); err != nil {
		return nil, err
	}

	return newSaramaProducer(configs, prd), nil
}

func newSaramaProducer(configs *Config, prd sarama.SyncProducer) *saramaProducer {
	labels := []string{`topic`}
	return &saramaProducer{
		id:             configs.Id,
		saramaProducer: prd,
		logger:         configs.Logger.NewLog(log.Prefixed(`producer`)),
		metrics: &metricsReporter{
			produceLatency: configs.MetricsReporter.Observer(metrics.MetricConf{
				Path:        `bucket_join_producer_produced_latency_microseconds`,
				Labels:      labels,
				ConstLabels: map[string]string{`producer_id`: configs.Id},
			}),
			batchProduceLatency: configs.MetricsReporter.Observer(metrics.MetricConf{
				Path:        `bucket_join_producer_batch_produced_latency_microseconds`,
				Labels:      append(labels, `size`),
				ConstLabels: map[string]string{`producer_id`: configs.Id},
			}),
		},
	}
}

func (p *saramaProducer) Close() error {
	defer p.logger.Info(fmt.Sprintf(`producer [%s] closed`, p.id))
	return p.saramaProducer.Close()
}

func toMessage(message *data.Record, now time.Time) *sarama.ProducerMessage {
	m := &sarama.ProducerMessage{
		Topic:     message.Topic,
		Key:       sarama.ByteEncoder(message.Key),
		Value:     sarama.ByteEncoder(message.Value),
		Headers:   message.AllHeaders(),
		Partition: message.Partition,
		Timestamp: now,
	}

	if !message.Timestamp.IsZero() {
		m.Timestamp = message.Timestamp
	}

	return m
}

func (p *saramaProducer) Produce(ctx context.Context, message *data.Record) (partition int32, offset int64, err error) {
	t := time.Now()

	pr, o, err := p.saramaProducer.SendMessage(toMessage(message, t))
	if err != nil {
		return 0, 0, errors.WithPrevious(err, `cannot send message`)
	}

	p.metrics.produceLatency.Observe(float64(time.Since(t).Nanoseconds()/1e3), map[string]string{
		`topic`: message.Topic,
	})

	p.logger.TraceContext(ctx, fmt.Sprintf("Delivered message to topic %s [%d] at offset %d",
		message.Topic, pr, o))

	return pr, o, nil
}

func (p *saramaProducer) ProduceBatch(ctx context.Context, messages []*data.Record) error {
	if len(messages) == 0 {
		return nil
	}

	t := time.Now()
	saramaMessages := make([]*sarama.ProducerMessage, 0, len(messages))
	for _, message := range messages {
		saramaMessages = append(saramaMessages, toMessage(message, t))
	}

	if err := p.saramaProducer.SendMessages(saramaMessages); err != nil {
		return errors.WithPrevious(err, `cannot produce batch`)
	}

	p.metrics.batchProduceLatency.Observe(float64(time.Since(t).Nanoseconds()/1e3), map[string]string{
		`topic`: messages[0].Topic,
		`size`:  fmt.Sprint(len(messages)),
	})
	p.logger.TraceContext(ctx, fmt.Sprintf("%d messages delivered to %s", len(messages), messages[0].Topic))

	return nil
}
