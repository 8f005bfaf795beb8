package data

import (
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
)

// Record is one encoded join result on its way to a message broker.
type Record struct {
	Key, Value []byte
	Topic      string
	Partition  int32
	Timestamp  time.Time
	Headers    []sarama.RecordHeader
	// RunId ties the record to the benchmark run that produced it.
	RunId uuid.UUID
}

func (r *Record) String() string {
	return fmt.Sprintf(`%s_%d_%s`, r.Topic, r.Partition, r.RunId)
}

// RunHeader is the header name carrying the run id.
const RunHeader = `run_id`

// AllHeaders returns the record headers plus the run id header when one is set.
func (r *Record) AllHeaders() []sarama.RecordHeader {
	headers := append([]sarama.RecordHeader(nil), r.Headers...)
	if r.RunId != uuid.Nil {
		headers = append(headers, sarama.RecordHeader{Key: []byte(RunHeader), Value: []byte(r.RunId.String())})
	}
	return headers
}
