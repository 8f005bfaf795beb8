package tables

import (
	"context"
	"reflect"
	"testing"

	"github.com/tryfix/bucketjoin/join"
)

func TestPairJoiner(t *testing.T) {
	s, err := join.NewSequential(PairJoiner(), join.NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	a := TableARows([]TableARow{
		{KeyField: `AA`, Value1: 2, Description: `Item A`},
		{KeyField: `AA`, Value1: 3, Description: `Item B`},
		{KeyField: `BB`, Value1: 5},
	})
	b := TableBRows([]TableBRow{
		{KeyField: `AA`, Value3: 10, Status: `Active`},
		{KeyField: `CC`, Value3: 1},
	})

	records, err := s.Join(context.Background(), a, b)
	if err != nil {
		t.Fatal(err)
	}

	want := []JoinResult{
		{KeyField: `AA`, Value1: 2, Value3: 10, TotalValue: 20, Description: `Item A`, Status: `Active`},
		{KeyField: `AA`, Value1: 3, Value3: 10, TotalValue: 30, Description: `Item B`, Status: `Active`},
	}
	if got := Values(records); !reflect.DeepEqual(got, want) {
		t.Errorf(`expected %+v, got %+v`, want, got)
	}
}

func TestAggregator(t *testing.T) {
	masters := MasterRows([]MasterRow{{MKey: 1, MText: `X`, Num: 2}, {MKey: 1, MText: `Y`, Num: 3}})
	slaves := SlaveRows([]SlaveRow{{SKey: 1, SText: `Z`, Num: 10}})

	s, err := join.NewSequential(Aggregator(), join.NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	p, err := join.NewParallel(Aggregator(), join.NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	want := []AggregateResult{{RKey: 1, RText: `2`, NumAvg: 25}}

	records, err := s.Join(context.Background(), masters, slaves)
	if err != nil {
		t.Fatal(err)
	}

	if got := Values(records); !reflect.DeepEqual(got, want) {
		t.Errorf(`sequential: expected %+v, got %+v`, want, got)
	}

	records, err = p.Join(context.Background(), masters, slaves, 2)
	if err != nil {
		t.Fatal(err)
	}

	if got := Values(records); !reflect.DeepEqual(got, want) {
		t.Errorf(`parallel: expected %+v, got %+v`, want, got)
	}
}

func TestAggregator_Unmatched_Keys(t *testing.T) {
	s, err := join.NewSequential(Aggregator(), join.NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	records, err := s.Join(context.Background(),
		MasterRows([]MasterRow{{MKey: 1, Num: 2}, {MKey: 3, Num: 1}}),
		SlaveRows([]SlaveRow{{SKey: 2, Num: 1}}))
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 0 {
		t.Errorf(`expected no records, got %+v`, records)
	}
}
