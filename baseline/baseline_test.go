package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/tryfix/bucketjoin/generator"
	"github.com/tryfix/bucketjoin/join"
	"github.com/tryfix/bucketjoin/storage/sqlite"
	"github.com/tryfix/bucketjoin/tables"
	"github.com/tryfix/log"
)

func setup(t *testing.T) *sqlite.DB {
	ctx := context.Background()
	conf := sqlite.NewConfig()
	conf.Path = `:memory:`

	db, err := sqlite.Open(conf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	g := generator.New(11, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	a, _ := g.TableA(300, 2)
	b, _ := g.TableB(200, 2)
	m, _ := g.Master(40, 1, 3)
	s, _ := g.Slave(30, 0, 3)

	for _, err := range []error{
		db.InsertTableA(ctx, a),
		db.InsertTableB(ctx, b),
		db.InsertMaster(ctx, m),
		db.InsertSlave(ctx, s),
		db.SortTables(ctx),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	return db
}

func TestExecutor_JoinTables_Matches_Bucket_Join(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	n, err := NewExecutor(db, log.NewNoopLogger()).JoinTables(ctx)
	if err != nil {
		t.Fatal(err)
	}

	native, err := db.JoinResults(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if int64(len(native)) != n || n == 0 {
		t.Fatalf(`reported %d rows, read %d`, n, len(native))
	}

	a, _ := db.SortedTableA(ctx)
	b, _ := db.SortedTableB(ctx)

	p, err := join.NewParallel(tables.PairJoiner(), join.NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	records, err := p.Join(ctx, tables.TableARows(a), tables.TableBRows(b), 4)
	if err != nil {
		t.Fatal(err)
	}

	if !tables.SameJoinResults(tables.Values(records), native) {
		t.Error(`bucket join differs from the native join`)
	}
}

func TestExecutor_AggregateMasterSlave_Matches_Bucket_Join(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	if _, err := NewExecutor(db, nil).AggregateMasterSlave(ctx); err != nil {
		t.Fatal(err)
	}

	native, err := db.AggregateResults(ctx)
	if err != nil {
		t.Fatal(err)
	}

	m, _ := db.SortedMaster(ctx)
	s, _ := db.SortedSlave(ctx)

	seq, err := join.NewSequential(tables.Aggregator(), join.NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	records, err := seq.Join(ctx, tables.MasterRows(m), tables.SlaveRows(s))
	if err != nil {
		t.Fatal(err)
	}

	if len(native) == 0 || !tables.SameAggregateResults(tables.Values(records), native, 1e-9) {
		t.Errorf(`bucket aggregate differs from the native one: %d vs %d rows`, len(records), len(native))
	}
}
