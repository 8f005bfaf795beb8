package sqlite

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/tryfix/bucketjoin/tables"
)

func openMemory(t *testing.T) *DB {
	conf := NewConfig()
	conf.Path = `:memory:`

	db, err := Open(conf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}

	return db
}

func TestDB_Sorted_Tables(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	day := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := db.InsertTableA(ctx, []tables.TableARow{
		{KeyField: `BB`, Value1: 5, Value2: 1.5, Description: `Item B`},
		{KeyField: `AA`, Value1: 2, Value2: 0.5, Description: `Item A`},
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.InsertTableB(ctx, []tables.TableBRow{
		{KeyField: `CC`, Value3: 1, Value4: day, Status: `Active`},
		{KeyField: `AA`, Value3: 10, Value4: day, Status: `Pending`},
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.SortTables(ctx); err != nil {
		t.Fatal(err)
	}

	a, err := db.SortedTableA(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != 2 || a[0].KeyField != `AA` || a[1].KeyField != `BB` || a[1].Value2 != 1.5 {
		t.Errorf(`unexpected TableA rows %+v`, a)
	}

	b, err := db.SortedTableB(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := []tables.TableBRow{
		{KeyField: `AA`, Value3: 10, Value4: day, Status: `Pending`},
		{KeyField: `CC`, Value3: 1, Value4: day, Status: `Active`},
	}
	if !reflect.DeepEqual(b, want) {
		t.Errorf(`expected %+v, got %+v`, want, b)
	}
}

func TestDB_Sorted_Master_Slave(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	if err := db.InsertMaster(ctx, []tables.MasterRow{{MKey: 2, MText: `A`, Num: 1}, {MKey: 1, MText: `X`, Num: 2}}); err != nil {
		t.Fatal(err)
	}

	if err := db.InsertSlave(ctx, []tables.SlaveRow{{SKey: 1, SText: `Z`, Num: 10}}); err != nil {
		t.Fatal(err)
	}

	if err := db.SortTables(ctx); err != nil {
		t.Fatal(err)
	}

	m, err := db.SortedMaster(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(m) != 2 || m[0].MKey != 1 || m[1].MKey != 2 {
		t.Errorf(`unexpected master rows %+v`, m)
	}

	s, err := db.SortedSlave(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(s, []tables.SlaveRow{{SKey: 1, SText: `Z`, Num: 10}}) {
		t.Errorf(`unexpected slave rows %+v`, s)
	}
}

func TestDB_Results(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	joined := []tables.JoinResult{
		{KeyField: `BB`, Value1: 1, Value3: 2, TotalValue: 2, Description: `Item A`, Status: `Active`},
		{KeyField: `AA`, Value1: 3, Value3: 10, TotalValue: 30, Description: `Item B`, Status: `Pending`},
	}
	if err := db.SaveJoinResults(ctx, joined); err != nil {
		t.Fatal(err)
	}

	if err := db.SaveAggregateResults(ctx, []tables.AggregateResult{{RKey: 1, RText: `2`, NumAvg: 25}}); err != nil {
		t.Fatal(err)
	}

	got, err := db.JoinResults(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 || got[0].KeyField != `AA` || !tables.SameJoinResults(got, joined) {
		t.Errorf(`unexpected join results %+v`, got)
	}

	agg, err := db.AggregateResults(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(agg, []tables.AggregateResult{{RKey: 1, RText: `2`, NumAvg: 25}}) {
		t.Errorf(`unexpected aggregate results %+v`, agg)
	}

	if err := db.ClearResults(ctx); err != nil {
		t.Fatal(err)
	}

	if got, _ := db.JoinResults(ctx); len(got) != 0 {
		t.Error(`results not cleared`)
	}
}

func TestDB_ClearTables(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	if err := db.InsertTableA(ctx, []tables.TableARow{{KeyField: `AA`}}); err != nil {
		t.Fatal(err)
	}

	if err := db.SortTables(ctx); err != nil {
		t.Fatal(err)
	}

	if err := db.ClearTables(ctx); err != nil {
		t.Fatal(err)
	}

	if err := db.SortTables(ctx); err != nil {
		t.Fatal(err)
	}

	if rows, _ := db.SortedTableA(ctx); len(rows) != 0 {
		t.Errorf(`tables not cleared %+v`, rows)
	}
}

func TestOpen_Empty_Path(t *testing.T) {
	conf := NewConfig()
	conf.Path = ``
	if _, err := Open(conf); err == nil {
		t.Error(`expected error for an empty path`)
	}
}
