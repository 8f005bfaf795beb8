// Package tables holds the two benchmarked join shapes, TableA/TableB and
// Master/Slave, and the combiners that turn their buckets into results.
package tables

import (
	"cmp"
	"strconv"
	"time"

	"github.com/tryfix/bucketjoin/join"
)

type TableARow struct {
	KeyField    string  `json:"key_field"`
	Value1      int     `json:"value1"`
	Value2      float64 `json:"value2"`
	Description string  `json:"description"`
}

type TableBRow struct {
	KeyField string    `json:"key_field"`
	Value3   int       `json:"value3"`
	Value4   time.Time `json:"value4"`
	Status   string    `json:"status"`
}

type JoinResult struct {
	KeyField    string `json:"key_field"`
	Value1      int    `json:"value1"`
	Value3      int    `json:"value3"`
	TotalValue  int    `json:"total_value"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type MasterRow struct {
	MKey  int    `json:"m_key"`
	MText string `json:"m_text"`
	Num   int    `json:"num"`
}

type SlaveRow struct {
	SKey  int     `json:"s_key"`
	SText string  `json:"s_text"`
	Num   float64 `json:"num"`
}

// AggregateResult summarises one matching bucket. RText carries the number of
// combined pairs.
type AggregateResult struct {
	RKey   int     `json:"r_key"`
	RText  string  `json:"r_text"`
	NumAvg float64 `json:"num_avg"`
}

func TableARows(rows []TableARow) []join.Row[string, TableARow] {
	out := make([]join.Row[string, TableARow], len(rows))
	for i, r := range rows {
		out[i] = join.Row[string, TableARow]{Key: r.KeyField, Payload: r}
	}
	return out
}

func TableBRows(rows []TableBRow) []join.Row[string, TableBRow] {
	out := make([]join.Row[string, TableBRow], len(rows))
	for i, r := range rows {
		out[i] = join.Row[string, TableBRow]{Key: r.KeyField, Payload: r}
	}
	return out
}

func MasterRows(rows []MasterRow) []join.Row[int, MasterRow] {
	out := make([]join.Row[int, MasterRow], len(rows))
	for i, r := range rows {
		out[i] = join.Row[int, MasterRow]{Key: r.MKey, Payload: r}
	}
	return out
}

func SlaveRows(rows []SlaveRow) []join.Row[int, SlaveRow] {
	out := make([]join.Row[int, SlaveRow], len(rows))
	for i, r := range rows {
		out[i] = join.Row[int, SlaveRow]{Key: r.SKey, Payload: r}
	}
	return out
}

// Values strips the join keys off a record list.
func Values[K cmp.Ordered, O any](records []join.Record[K, O]) []O {
	out := make([]O, len(records))
	for i, r := range records {
		out[i] = r.Value
	}
	return out
}

func mapJoinResult(key string, a TableARow, b TableBRow) (JoinResult, error) {
	return JoinResult{
		KeyField:    key,
		Value1:      a.Value1,
		Value3:      b.Value3,
		TotalValue:  a.Value1 * b.Value3,
		Description: a.Description,
		Status:      b.Status,
	}, nil
}

// PairJoiner emits one JoinResult for every TableA, TableB pair of a key.
func PairJoiner() join.Combiner[string, TableARow, TableBRow, JoinResult] {
	return join.Pairwise[string, TableARow, TableBRow, JoinResult](mapJoinResult)
}

// Aggregator folds a Master/Slave bucket into a single AggregateResult holding
// the pair count and the average of master.Num * slave.Num over all pairs.
func Aggregator() join.Combiner[int, MasterRow, SlaveRow, AggregateResult] {
	return join.CombinerFunc[int, MasterRow, SlaveRow, AggregateResult](aggregate)
}

func aggregate(key int, masters []join.Row[int, MasterRow], slaves []join.Row[int, SlaveRow]) ([]AggregateResult, error) {
	var pairs int
	var sum float64
	for _, s := range slaves {
		for _, m := range masters {
			sum += float64(m.Payload.Num) * s.Payload.Num
			pairs++
		}
	}

	if pairs == 0 {
		return nil, nil
	}

	return []AggregateResult{{
		RKey:   key,
		RText:  strconv.Itoa(pairs),
		NumAvg: sum / float64(pairs),
	}}, nil
}
