/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

// Package admin prepares the kafka topics join results are published to.
package admin

import (
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

type Topic struct {
	Name              string
	NumPartitions     int32
	ReplicationFactor int16
	ConfigEntries     map[string]string
	// Error is set by FetchInfo when the broker reported the topic with an error,
	// sarama.ErrUnknownTopicOrPartition for a missing topic.
	Error error
}

type kafkaAdminOptions struct {
	KafkaVersion sarama.KafkaVersion
	Logger       log.Logger
}

func (opts *kafkaAdminOptions) apply(options ...KafkaAdminOption) {
	opts.KafkaVersion = sarama.V2_4_0_0
	opts.Logger = log.NewNoopLogger()
	for _, opt := range options {
		opt(opts)
	}
}

type KafkaAdminOption func(*kafkaAdminOptions)

func WithKafkaVersion(version sarama.KafkaVersion) KafkaAdminOption {
	return func(options *kafkaAdminOptions) {
		options.KafkaVersion = version
	}
}

func WithLogger(logger log.Logger) KafkaAdminOption {
	return func(options *kafkaAdminOptions) {
		options.Logger = logger
	}
}

type KafkaAdmin struct {
	admin  sarama.ClusterAdmin
	logger log.Logger
}

func NewKafkaAdmin(bootstrapServers []string, options ...KafkaAdminOption) (*KafkaAdmin, error) {
	opts := new(kafkaAdminOptions)
	opts.apply(options...)

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = opts.KafkaVersion

	admin, err := sarama.NewClusterAdmin(bootstrapServers, saramaConfig)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot get controller`)
	}

	return &KafkaAdmin{
		admin:  admin,
		logger: opts.Logger.NewLog(log.Prefixed(`kafka-admin`)),
	}, nil
}

func (c *KafkaAdmin) FetchInfo(topics []string) (map[string]*Topic, error) {
	topicMeta, err := c.admin.DescribeTopics(topics)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot get metadata`)
	}

	info := make(map[string]*Topic, len(topicMeta))
	for _, tp := range topicMeta {
		info[tp.Name] = &Topic{
			Name:          tp.Name,
			NumPartitions: int32(len(tp.Partitions)),
		}
		if tp.Err != sarama.ErrNoError {
			info[tp.Name].Error = tp.Err
		}
	}

	return info, nil
}

// EnsureTopics creates the topics missing on the cluster. Existing topics are
// left as they are, a partition count other than the requested one is logged.
func (c *KafkaAdmin) EnsureTopics(topics []*Topic) error {
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, t.Name)
	}

	existing, err := c.FetchInfo(names)
	if err != nil {
		return err
	}

	for _, t := range topics {
		if info, ok := existing[t.Name]; ok && info.Error == nil {
			if info.NumPartitions != t.NumPartitions {
				c.logger.Warn(fmt.Sprintf(`topic %s exists with %d partitions, %d requested`,
					t.Name, info.NumPartitions, t.NumPartitions))
			}
			continue
		}

		if err := c.createTopic(t); err != nil {
			return err
		}
	}

	return nil
}

func (c *KafkaAdmin) createTopic(t *Topic) error {
	details := &sarama.TopicDetail{
		NumPartitions:     t.NumPartitions,
		ReplicationFactor: t.ReplicationFactor,
		ConfigEntries:     map[string]*string{},
	}
	for name, config := range t.ConfigEntries {
		configCpy := config
		details.ConfigEntries[name] = &configCpy
	}

	err := c.admin.CreateTopic(t.Name, details, false)
	if err != nil {
		if e, ok := err.(*sarama.TopicError); ok && (e.Err == sarama.ErrTopicAlreadyExists || e.Err == sarama.ErrNoError) {
			c.logger.Warn(err)
			return nil
		}
		return errors.WithPrevious(err, fmt.Sprintf(`could not create topic %s`, t.Name))
	}

	c.logger.Info(fmt.Sprintf(`topic %s created with %d partitions`, t.Name, t.NumPartitions))

	return nil
}

func (c *KafkaAdmin) DeleteTopics(topics []string) error {
	for _, topic := range topics {
		if err := c.admin.DeleteTopic(topic); err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`could not delete topic %s`, topic))
		}
	}

	return nil
}

func (c *KafkaAdmin) Close() error {
	return c.admin.Close()
}
