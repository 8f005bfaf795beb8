package producer

import (
	"github.com/Shopify/sarama"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type Config struct {
	Id string
	*sarama.Config
	BootstrapServers []string
	RequiredAcks     RequiredAcks
	Partitioner      Partitioner
	Logger           log.Logger
	MetricsReporter  metrics.Reporter
}

func NewConfig() *Config {
	c := new(Config)
	c.setDefaults()
	return c
}

func (c *Config) validate() error {
	if c.Id == `` {
		return errors.New(`producer Id cannot be empty`)
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}

	c.Producer.RequiredAcks = sarama.RequiredAcks(c.RequiredAcks)

	switch c.Partitioner {
	case Manual:
		c.Producer.Partitioner = sarama.NewManualPartitioner
	case Random:
		c.Producer.Partitioner = sarama.NewRandomPartitioner
	default:
		c.Producer.Partitioner = sarama.NewHashPartitioner
	}

	if err := c.Config.Validate(); err != nil {
		return errors.WithPrevious(err, `invalid sarama config`)
	}

	return nil
}

func (c *Config) setDefaults() {
	c.Id = `bucket_join_producer`
	c.Config = sarama.NewConfig()
	c.RequiredAcks = WaitForAll
	c.Partitioner = HashBased
	c.Producer.Return.Errors = true
	// a SyncProducer needs the successes channel
	c.Producer.Return.Successes = true
	c.Producer.Compression = sarama.CompressionSnappy
	c.Logger = log.NewNoopLogger()
	c.MetricsReporter = metrics.NoopReporter()
}
