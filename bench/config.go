/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package bench

import (
	"bytes"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/tryfix/bucketjoin/join"
	"github.com/tryfix/bucketjoin/util"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	"gopkg.in/yaml.v3"
)

type Scenario string

const (
	// ScenarioTables joins TableA and TableB pairwise.
	ScenarioTables Scenario = `tables`
	// ScenarioMasterSlave aggregates Master and Slave per key.
	ScenarioMasterSlave Scenario = `master_slave`
)

type SinkKind string

const (
	SinkNone   SinkKind = `none`
	SinkSqlite SinkKind = `sqlite`
	SinkMemory SinkKind = `memory`
	SinkKafka  SinkKind = `kafka`
)

type Config struct {
	Id        string     `yaml:"id"`
	Database  string     `yaml:"database"`
	Scenarios []Scenario `yaml:"scenarios"`
	// Workers lists the worker counts the parallel joiner runs with.
	Workers  []int         `yaml:"workers"`
	Strategy string        `yaml:"strategy"`
	Timeout  time.Duration `yaml:"timeout"`
	// Repeat runs every scenario this many times, timings aggregate over all runs.
	Repeat int `yaml:"repeat"`
	// Epsilon is the relative tolerance when comparing averages with the native engine.
	Epsilon  float64 `yaml:"epsilon"`
	Generate struct {
		Enabled    bool  `yaml:"enabled"`
		Seed       int64 `yaml:"seed"`
		TableA     int   `yaml:"table_a"`
		TableB     int   `yaml:"table_b"`
		KeyLength  int   `yaml:"key_length"`
		MasterKeys int   `yaml:"master_keys"`
		SlaveKeys  int   `yaml:"slave_keys"`
		MinRecords int   `yaml:"min_records"`
		MaxRecords int   `yaml:"max_records"`
	} `yaml:"generate"`
	Sink struct {
		Kind      SinkKind `yaml:"kind"`
		Brokers   []string `yaml:"brokers"`
		Topic     string   `yaml:"topic"`
		BatchSize int      `yaml:"batch_size"`
		// CreateTopics creates missing result topics before the first run.
		CreateTopics      bool  `yaml:"create_topics"`
		Partitions        int32 `yaml:"partitions"`
		ReplicationFactor int16 `yaml:"replication_factor"`
	} `yaml:"sink"`
	Http struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
	} `yaml:"http"`
	MetricsReporter metrics.Reporter `yaml:"-"`
	Logger          log.Logger       `yaml:"-"`
}

func NewConfig() *Config {
	c := new(Config)
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	c.Id = `bucket_join_bench`
	c.Database = `bucketjoin.db`
	c.Scenarios = []Scenario{ScenarioTables, ScenarioMasterSlave}
	c.Workers = []int{1, 2, 4, 8}
	c.Strategy = join.RoundRobin.String()
	c.Repeat = 1
	c.Epsilon = 1e-9

	c.Generate.Enabled = true
	c.Generate.Seed = 1
	c.Generate.TableA = 10000
	c.Generate.TableB = 10000
	c.Generate.KeyLength = 2
	c.Generate.MasterKeys = 1000
	c.Generate.SlaveKeys = 1000
	c.Generate.MinRecords = 1
	c.Generate.MaxRecords = 10

	c.Sink.Kind = SinkSqlite
	c.Sink.Topic = `bucket_join_results`
	c.Sink.BatchSize = 500
	c.Sink.CreateTopics = true
	c.Sink.Partitions = 3
	c.Sink.ReplicationFactor = 1

	c.Http.Host = `:8090`

	c.MetricsReporter = metrics.NoopReporter()
	c.Logger = log.NewNoopLogger()
}

// LoadConfig reads a YAML file over the defaults. Fields missing in the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()

	byt, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot read config file`)
	}

	if err := yaml.Unmarshal(byt, c); err != nil {
		return nil, errors.WithPrevious(err, `cannot parse config file`)
	}

	return c, nil
}

func (c *Config) validate() error {
	if len(c.Scenarios) < 1 {
		return errors.New(`[Scenarios] cannot be empty`)
	}

	for _, s := range c.Scenarios {
		if s != ScenarioTables && s != ScenarioMasterSlave {
			return errors.New(`unknown scenario [` + string(s) + `]`)
		}
	}

	if len(c.Workers) < 1 {
		return errors.New(`[Workers] cannot be empty`)
	}

	for _, w := range c.Workers {
		if w < 1 {
			return errors.New(`[Workers] should be greater than 0`)
		}
	}

	if _, err := join.ParsePartitionStrategy(c.Strategy); err != nil {
		return err
	}

	if c.Repeat < 1 {
		return errors.New(`[Repeat] should be greater than 0`)
	}

	if c.Epsilon < 0 {
		return errors.New(`[Epsilon] cannot be negative`)
	}

	if c.Generate.Enabled {
		g := c.Generate
		if g.TableA < 0 || g.TableB < 0 || g.KeyLength < 1 {
			return errors.New(`[Generate] table sizes cannot be negative and KeyLength should be greater than 0`)
		}

		if g.MasterKeys < 0 || g.SlaveKeys < 0 || g.MinRecords < 0 || g.MaxRecords < g.MinRecords {
			return errors.New(`[Generate] invalid master/slave key counts or records range`)
		}
	}

	switch c.Sink.Kind {
	case SinkNone, SinkSqlite, SinkMemory:
	case SinkKafka:
		if len(c.Sink.Brokers) < 1 || c.Sink.Topic == `` || c.Sink.BatchSize < 1 {
			return errors.New(`[Sink] kafka needs Brokers, Topic and a BatchSize greater than 0`)
		}

		if c.Sink.CreateTopics && (c.Sink.Partitions < 1 || c.Sink.ReplicationFactor < 1) {
			return errors.New(`[Sink] Partitions and ReplicationFactor should be greater than 0`)
		}
	default:
		return errors.New(`unknown sink kind [` + string(c.Sink.Kind) + `]`)
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}

	return nil
}

func (c *Config) String() string {
	data := util.StrToMap(`bench`, c)

	out := new(bytes.Buffer)
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{`Config`, `Value`})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.AppendBulk(data)
	table.Render()

	return out.String()
}
