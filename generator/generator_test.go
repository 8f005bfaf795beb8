package generator

import (
	"reflect"
	"testing"
	"time"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerator_TableA(t *testing.T) {
	rows, err := New(1, now).TableA(500, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 500 {
		t.Fatalf(`expected 500 rows, got %d`, len(rows))
	}

	for _, r := range rows {
		if len(r.KeyField) != 2 || r.KeyField[0] < 'A' || r.KeyField[0] > 'E' || r.KeyField[1] < 'A' || r.KeyField[1] > 'E' {
			t.Errorf(`invalid key %s`, r.KeyField)
		}

		if r.Value1 < 1 || r.Value1 > 99 || r.Value2 < 0 || r.Value2 >= 100 {
			t.Errorf(`invalid values %+v`, r)
		}
	}
}

func TestGenerator_TableB(t *testing.T) {
	rows, err := New(1, now).TableB(500, 3)
	if err != nil {
		t.Fatal(err)
	}

	for _, r := range rows {
		if len(r.KeyField) != 3 {
			t.Errorf(`invalid key %s`, r.KeyField)
		}

		if r.Value4.After(now) || r.Value4.Before(now.AddDate(0, 0, -365)) {
			t.Errorf(`date out of range %s`, r.Value4)
		}

		switch r.Status {
		case `Active`, `Inactive`, `Pending`, `Completed`:
		default:
			t.Errorf(`invalid status %s`, r.Status)
		}
	}
}

func TestGenerator_Master_Slave(t *testing.T) {
	g := New(3, now)

	masters, err := g.Master(20, 1, 4)
	if err != nil {
		t.Fatal(err)
	}

	counts := map[int]int{}
	for i, m := range masters {
		if i > 0 && masters[i-1].MKey > m.MKey {
			t.Fatal(`master rows not in key order`)
		}
		counts[m.MKey]++

		if m.Num < 1 || m.Num > 99 || len(m.MText) != 1 {
			t.Errorf(`invalid master row %+v`, m)
		}
	}

	if len(counts) != 20 {
		t.Errorf(`expected 20 keys, got %d`, len(counts))
	}

	for k, c := range counts {
		if c < 1 || c > 4 {
			t.Errorf(`key %d has %d rows`, k, c)
		}
	}

	slaves, err := g.Slave(20, 0, 2)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range slaves {
		if s.Num < 0 || s.Num >= 100 {
			t.Errorf(`invalid slave row %+v`, s)
		}
	}
}

func TestGenerator_Seeded(t *testing.T) {
	a, _ := New(42, now).TableB(100, 2)
	b, _ := New(42, now).TableB(100, 2)

	if !reflect.DeepEqual(a, b) {
		t.Error(`same seed produced different rows`)
	}
}

func TestGenerator_Invalid_Arguments(t *testing.T) {
	g := New(1, now)

	if _, err := g.TableA(-1, 2); err == nil {
		t.Error(`expected error for a negative count`)
	}

	if _, err := g.TableB(1, 0); err == nil {
		t.Error(`expected error for a zero key length`)
	}

	if _, err := g.Master(1, 3, 2); err == nil {
		t.Error(`expected error for an inverted range`)
	}
}
