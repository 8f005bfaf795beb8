package join

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

type pair struct {
	Left  int
	Right int
}

func product(key string, left int, right int) (int, error) {
	return left * right, nil
}

func pairs(key string, left int, right int) (pair, error) {
	return pair{Left: left, Right: right}, nil
}

func rows(kv ...interface{}) []Row[string, int] {
	var out []Row[string, int]
	for i := 0; i < len(kv); i += 2 {
		out = append(out, Row[string, int]{Key: kv[i].(string), Payload: kv[i+1].(int)})
	}
	return out
}

func randomRows(rnd *rand.Rand, n, keys int) []Row[string, int] {
	out := make([]Row[string, int], 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Row[string, int]{
			Key:     fmt.Sprintf(`K%03d`, rnd.Intn(keys)),
			Payload: rnd.Intn(100) + 1,
		})
	}
	SortRows(out)
	return out
}

func newSequential(t *testing.T) *Sequential[string, int, int, pair] {
	s, err := NewSequential[string, int, int, pair](Pairwise(pairs), NewConfig())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newParallel(t *testing.T, strategy PartitionStrategy) *Parallel[string, int, int, pair] {
	conf := NewConfig()
	conf.Strategy = strategy
	p, err := NewParallel[string, int, int, pair](Pairwise(pairs), conf)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSequential_Join(t *testing.T) {
	s, err := NewSequential[string, int, int, int](Pairwise(product), NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	left := rows(`AA`, 2, `AA`, 3, `BB`, 5)
	right := rows(`AA`, 10, `CC`, 1)

	got, err := s.Join(context.Background(), left, right)
	if err != nil {
		t.Fatal(err)
	}

	want := []Record[string, int]{{Key: `AA`, Value: 20}, {Key: `AA`, Value: 30}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf(`expected %v, got %v`, want, got)
	}
}

func TestSequential_Join_Empty_Inputs(t *testing.T) {
	s := newSequential(t)
	some := rows(`AA`, 1, `BB`, 2)

	for _, tc := range []struct {
		left, right []Row[string, int]
	}{
		{nil, some},
		{some, nil},
		{nil, nil},
		{rows(`AA`, 1, `CC`, 1), rows(`BB`, 1, `DD`, 1)},
	} {
		got, err := s.Join(context.Background(), tc.left, tc.right)
		if err != nil {
			t.Error(err)
		}

		if len(got) != 0 {
			t.Errorf(`expected empty result, got %v`, got)
		}
	}
}

func TestSequential_Join_Completeness(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	left := randomRows(rnd, 500, 40)
	right := randomRows(rnd, 400, 60)

	got, err := newSequential(t).Join(context.Background(), left, right)
	if err != nil {
		t.Fatal(err)
	}

	leftCount, rightCount := map[string]int{}, map[string]int{}
	for _, r := range left {
		leftCount[r.Key]++
	}
	for _, r := range right {
		rightCount[r.Key]++
	}

	gotCount := map[string]int{}
	for _, r := range got {
		gotCount[r.Key]++
	}

	for k, n := range leftCount {
		if gotCount[k] != n*rightCount[k] {
			t.Errorf(`key %s: expected %d records, got %d`, k, n*rightCount[k], gotCount[k])
		}
	}

	for k := range gotCount {
		if leftCount[k] == 0 || rightCount[k] == 0 {
			t.Errorf(`key %s exists on one side only`, k)
		}
	}

	for i := 1; i < len(got); i++ {
		if got[i-1].Key > got[i].Key {
			t.Fatalf(`records not ascending at %d: %s > %s`, i, got[i-1].Key, got[i].Key)
		}
	}
}

func TestSequential_Join_Combine_Error(t *testing.T) {
	s, err := NewSequential[string, int, int, int](Pairwise(func(key string, l, r int) (int, error) {
		if key == `BB` {
			return 0, fmt.Errorf(`bad bucket`)
		}
		return l * r, nil
	}), NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Join(context.Background(), rows(`AA`, 1, `BB`, 1), rows(`AA`, 1, `BB`, 1))
	if KindOf(err) != KindCombineFailure {
		t.Errorf(`expected %s, got %v`, KindCombineFailure, err)
	}

	if got != nil {
		t.Error(`partial result returned`)
	}
}

func TestSequential_Join_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSequential(t).Join(ctx, rows(`AA`, 1), rows(`AA`, 1))
	if KindOf(err) != KindCanceled {
		t.Errorf(`expected %s, got %v`, KindCanceled, err)
	}
}

func TestParallel_Join_Worker_Count_Invariance(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	left := randomRows(rnd, 800, 50)
	right := randomRows(rnd, 600, 70)

	want, err := newSequential(t).Join(context.Background(), left, right)
	if err != nil {
		t.Fatal(err)
	}

	for _, strategy := range []PartitionStrategy{RoundRobin, ContiguousRange, HashByKey} {
		p := newParallel(t, strategy)
		for _, n := range []int{1, 2, 4, 9, 200} {
			got, err := p.Join(context.Background(), left, right, n)
			if err != nil {
				t.Fatal(err)
			}

			if !reflect.DeepEqual(got, want) {
				t.Errorf(`%s with %d workers differs from the sequential join`, strategy, n)
			}
		}
	}
}

func TestParallel_Join_Scenario(t *testing.T) {
	conf := NewConfig()
	p, err := NewParallel[string, int, int, int](Pairwise(product), conf)
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Join(context.Background(), rows(`AA`, 2, `AA`, 3, `BB`, 5), rows(`AA`, 10, `CC`, 1), 3)
	if err != nil {
		t.Fatal(err)
	}

	want := []Record[string, int]{{Key: `AA`, Value: 20}, {Key: `AA`, Value: 30}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf(`expected %v, got %v`, want, got)
	}
}

func TestParallel_Join_Invalid_Worker_Count(t *testing.T) {
	called := false
	p, err := NewParallel[string, int, int, int](Pairwise(func(key string, l, r int) (int, error) {
		called = true
		return 0, nil
	}), NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{0, -3} {
		_, err := p.Join(context.Background(), rows(`AA`, 1), rows(`AA`, 1), n)
		if KindOf(err) != KindInvalidArgument {
			t.Errorf(`worker count %d: expected %s, got %v`, n, KindInvalidArgument, err)
		}
	}

	if called {
		t.Error(`work scheduled for an invalid worker count`)
	}
}

func TestParallel_Join_Worker_Failure(t *testing.T) {
	p, err := NewParallel[string, int, int, int](Pairwise(func(key string, l, r int) (int, error) {
		switch key {
		case `AA`:
			panic(`boom`)
		case `BB`:
			return 0, fmt.Errorf(`bad bucket`)
		}
		return l * r, nil
	}), NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	left := rows(`AA`, 1, `BB`, 1, `CC`, 1, `DD`, 1)
	right := rows(`AA`, 1, `BB`, 1, `CC`, 1, `DD`, 1)

	got, err := p.Join(context.Background(), left, right, 4)
	if got != nil {
		t.Error(`partial result returned`)
	}

	e, ok := err.(*Error)
	if !ok || e.Kind != KindWorkerFailure {
		t.Fatalf(`expected %s, got %v`, KindWorkerFailure, err)
	}

	if len(e.Failures) == 0 {
		t.Fatal(`failed workers missing`)
	}

	// round robin puts AA on worker 0 and BB on worker 1, a failing worker may cancel the other
	for _, f := range e.Failures {
		if f.Worker != 0 && f.Worker != 1 {
			t.Errorf(`unexpected failure of worker %d: %v`, f.Worker, f.Err)
		}

		if f.Worker == 1 && KindOf(f.Err) != KindCombineFailure {
			t.Errorf(`expected combine failure on worker 1, got %v`, f.Err)
		}
	}
}

func TestParallel_Join_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newParallel(t, RoundRobin).Join(ctx, rows(`AA`, 1, `BB`, 1), rows(`AA`, 1, `BB`, 1), 2)
	if KindOf(err) != KindCanceled {
		t.Errorf(`expected %s, got %v`, KindCanceled, err)
	}
}

func TestWithWorkers(t *testing.T) {
	var joiner Joiner[string, int, int, pair] = WithWorkers(newParallel(t, RoundRobin), 3)

	got, err := joiner.Join(context.Background(), rows(`AA`, 1, `AA`, 2), rows(`AA`, 3))
	if err != nil {
		t.Fatal(err)
	}

	want := []Record[string, pair]{{Key: `AA`, Value: pair{1, 3}}, {Key: `AA`, Value: pair{2, 3}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf(`expected %v, got %v`, want, got)
	}
}
