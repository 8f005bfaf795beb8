/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package memory

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/tryfix/bucketjoin/backend"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

const degree = 32

type memoryRecord struct {
	key       []byte
	value     []byte
	createdAt time.Time
	expiry    time.Duration
}

func (r memoryRecord) expired(now time.Time) bool {
	return r.expiry > 0 && now.Sub(r.createdAt) > r.expiry
}

func less(a, b memoryRecord) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type config struct {
	MetricsReporter metrics.Reporter
	Logger          log.Logger
}

func NewConfig() *config {
	conf := new(config)
	conf.parse()

	return conf
}

func (c *config) parse() {
	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

type backendMetrics struct {
	readLatency   metrics.Observer
	updateLatency metrics.Observer
	deleteLatency metrics.Observer
	storageSize   metrics.Gauge
}

// memory keeps records in a b-tree ordered by key. Expired records are
// skipped on read and dropped on the next write to the same key.
type memory struct {
	name    string
	mu      sync.RWMutex
	records *btree.BTreeG[memoryRecord]
	expiry  time.Duration
	closed  bool
	logger  log.Logger
	metrics *backendMetrics
}

// Builder creates backends sharing one set of metrics, labeled by backend name.
func Builder(config *config) backend.Builder {
	config.parse()
	m := newBackendMetrics(config.MetricsReporter)
	return func(name string) (backend.Backend, error) {
		return newMemory(name, config.Logger, m), nil
	}
}

func NewMemoryBackend(logger log.Logger, reporter metrics.Reporter) backend.Backend {
	return newMemory(`memory`, logger, newBackendMetrics(reporter))
}

func newBackendMetrics(reporter metrics.Reporter) *backendMetrics {
	labels := []string{`name`, `type`}
	return &backendMetrics{
		readLatency:   reporter.Observer(metrics.MetricConf{Path: `backend_read_latency_microseconds`, Labels: labels}),
		updateLatency: reporter.Observer(metrics.MetricConf{Path: `backend_update_latency_microseconds`, Labels: labels}),
		deleteLatency: reporter.Observer(metrics.MetricConf{Path: `backend_delete_latency_microseconds`, Labels: labels}),
		storageSize:   reporter.Gauge(metrics.MetricConf{Path: `backend_storage_size`, Labels: labels}),
	}
}

func newMemory(name string, logger log.Logger, m *backendMetrics) *memory {
	return &memory{
		name:    name,
		records: btree.NewG[memoryRecord](degree, less),
		logger:  logger.NewLog(log.Prefixed(name)),
		metrics: m,
	}
}

func (m *memory) labels() map[string]string {
	return map[string]string{`name`: m.name, `type`: `memory`}
}

func (m *memory) Name() string {
	return m.name
}

func (m *memory) Set(key []byte, value []byte, expiry time.Duration) error {
	defer func(begin time.Time) {
		m.metrics.updateLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	if len(key) == 0 {
		return errors.New(`key cannot be empty`)
	}

	if expiry == 0 {
		expiry = m.expiry
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New(`backend [` + m.name + `] closed`)
	}

	// the tree keeps the slices, callers may reuse theirs
	m.records.ReplaceOrInsert(memoryRecord{
		key:       append([]byte(nil), key...),
		value:     append([]byte(nil), value...),
		expiry:    expiry,
		createdAt: time.Now(),
	})

	m.metrics.storageSize.Count(float64(m.records.Len()), m.labels())

	return nil
}

func (m *memory) Get(key []byte) ([]byte, error) {
	defer func(begin time.Time) {
		m.metrics.readLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errors.New(`backend [` + m.name + `] closed`)
	}

	record, ok := m.records.Get(memoryRecord{key: key})
	if !ok || record.expired(time.Now()) {
		return nil, nil
	}

	return record.value, nil
}

func (m *memory) RangeIterator(fromKey []byte, toKey []byte) backend.Iterator {
	return m.iterator(fromKey, toKey)
}

func (m *memory) Iterator() backend.Iterator {
	return m.iterator(nil, nil)
}

func (m *memory) iterator(fromKey, toKey []byte) *Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return &Iterator{err: errors.New(`backend [` + m.name + `] closed`)}
	}

	now := time.Now()
	var records []memoryRecord
	collect := func(r memoryRecord) bool {
		if !r.expired(now) {
			records = append(records, r)
		}
		return true
	}

	switch {
	case fromKey == nil && toKey == nil:
		m.records.Ascend(collect)
	case toKey == nil:
		m.records.AscendGreaterOrEqual(memoryRecord{key: fromKey}, collect)
	case fromKey == nil:
		m.records.AscendLessThan(memoryRecord{key: toKey}, collect)
	default:
		m.records.AscendRange(memoryRecord{key: fromKey}, memoryRecord{key: toKey}, collect)
	}

	return &Iterator{records: records}
}

func (m *memory) Delete(key []byte) error {
	defer func(begin time.Time) {
		m.metrics.deleteLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records.Delete(memoryRecord{key: key})
	m.metrics.storageSize.Count(float64(m.records.Len()), m.labels())

	return nil
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.records.Len()
}

func (m *memory) SetExpiry(expiry time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expiry = expiry
}

func (m *memory) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records.Clear(false)
	m.logger.Debug(`destroyed`)

	return nil
}

func (m *memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Iterator walks a point in time copy of the records in key order.
type Iterator struct {
	records []memoryRecord
	current int
	err     error
}

func (i *Iterator) SeekToFirst() {
	i.current = 0
}

func (i *Iterator) SeekToLast() {
	i.current = len(i.records) - 1
}

func (i *Iterator) Seek(key []byte) {
	i.current = sort.Search(len(i.records), func(n int) bool {
		return bytes.Compare(i.records[n].key, key) >= 0
	})
}

func (i *Iterator) Next() {
	i.current++
}

func (i *Iterator) Prev() {
	i.current--
}

func (i *Iterator) Close() {
	i.records = nil
}

func (i *Iterator) Key() []byte {
	return i.records[i.current].key
}

func (i *Iterator) Value() []byte {
	return i.records[i.current].value
}

func (i *Iterator) Valid() bool {
	return i.err == nil && i.current >= 0 && i.current < len(i.records)
}

func (i *Iterator) Error() error {
	return i.err
}
