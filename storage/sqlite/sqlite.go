// Package sqlite stores the benchmark relations and results in SQLite. Every
// read of a sorted table returns rows ordered by key, ready for a merge join.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tryfix/bucketjoin/tables"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS TableA (KeyField TEXT, Value1 INTEGER, Value2 REAL, Description TEXT);
CREATE TABLE IF NOT EXISTS TableB (KeyField TEXT, Value3 INTEGER, Value4 TEXT, Status TEXT);
CREATE TABLE IF NOT EXISTS TableA_srt (KeyField TEXT, Value1 INTEGER, Value2 REAL, Description TEXT);
CREATE TABLE IF NOT EXISTS TableB_srt (KeyField TEXT, Value3 INTEGER, Value4 TEXT, Status TEXT);
CREATE TABLE IF NOT EXISTS JoinResult (
	KeyField TEXT, Value1 INTEGER, Value3 INTEGER, TotalValue INTEGER, Description TEXT, Status TEXT
);
CREATE TABLE IF NOT EXISTS Master (MKey INTEGER, MText TEXT, Num INTEGER);
CREATE TABLE IF NOT EXISTS Slave (SKey INTEGER, SText TEXT, Num REAL);
CREATE TABLE IF NOT EXISTS Master_srt (MKey INTEGER, MText TEXT, Num INTEGER);
CREATE TABLE IF NOT EXISTS Slave_srt (SKey INTEGER, SText TEXT, Num REAL);
CREATE TABLE IF NOT EXISTS Result (RKey INTEGER, RText INTEGER, NUMAVG REAL);
CREATE INDEX IF NOT EXISTS idx_tablea_key ON TableA(KeyField);
CREATE INDEX IF NOT EXISTS idx_tableb_key ON TableB(KeyField);
CREATE INDEX IF NOT EXISTS idx_tablea_srt_key ON TableA_srt(KeyField);
CREATE INDEX IF NOT EXISTS idx_tableb_srt_key ON TableB_srt(KeyField);
CREATE INDEX IF NOT EXISTS idx_master_key ON Master(MKey);
CREATE INDEX IF NOT EXISTS idx_slave_key ON Slave(SKey);
CREATE INDEX IF NOT EXISTS idx_master_srt_key ON Master_srt(MKey);
CREATE INDEX IF NOT EXISTS idx_slave_srt_key ON Slave_srt(SKey);
`

// Value4 is kept as text, as declared in the schema.
const timeLayout = time.RFC3339Nano

type Config struct {
	// Path is the database file, `:memory:` keeps everything in memory.
	Path            string
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewConfig() *Config {
	return &Config{
		Path:            `bucketjoin.db`,
		Logger:          log.NewNoopLogger(),
		MetricsReporter: metrics.NoopReporter(),
	}
}

func (c *Config) validate() error {
	if c.Path == `` {
		return errors.New(`sqlite Path cannot be empty`)
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}

	return nil
}

type DB struct {
	db      *sql.DB
	path    string
	logger  log.Logger
	latency metrics.Observer
}

func Open(config *Config) (*DB, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(`sqlite3`, config.Path)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot open sqlite database [%s]`, config.Path))
	}

	// sqlite allows a single writer, and an in memory database lives in one connection
	db.SetMaxOpenConns(1)

	return &DB{
		db:     db,
		path:   config.Path,
		logger: config.Logger.NewLog(log.Prefixed(`sqlite`)),
		latency: config.MetricsReporter.Observer(metrics.MetricConf{
			Path:   `bucket_join_sqlite_latency_microseconds`,
			Labels: []string{`operation`},
		}),
	}, nil
}

// SQL exposes the underlying handle for native queries.
func (d *DB) SQL() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) observe(operation string, begin time.Time) {
	d.latency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), map[string]string{`operation`: operation})
}

func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.WithPrevious(err, `cannot create schema`)
	}

	d.logger.Info(fmt.Sprintf(`schema ready at %s`, d.path))
	return nil
}

// exec runs statements in order inside one transaction.
func (d *DB) exec(ctx context.Context, operation string, statements ...string) error {
	defer d.observe(operation, time.Now())

	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.WithPrevious(err, fmt.Sprintf(`%s failed on [%s]`, operation, stmt))
			}
		}
		return nil
	})
}

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithPrevious(err, `cannot begin transaction`)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error(fmt.Sprintf(`rollback failed due to %s`, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.WithPrevious(err, `cannot commit transaction`)
	}

	return nil
}

// insert prepares query once and executes it for every argument list in one transaction.
func (d *DB) insert(ctx context.Context, operation, query string, n int, args func(i int) []interface{}) error {
	defer d.observe(operation, time.Now())

	return d.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`cannot prepare %s`, operation))
		}
		defer stmt.Close()

		for i := 0; i < n; i++ {
			if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
				return errors.WithPrevious(err, fmt.Sprintf(`%s failed at row %d`, operation, i))
			}
		}
		return nil
	})
}

func (d *DB) InsertTableA(ctx context.Context, rows []tables.TableARow) error {
	return d.insert(ctx, `insert_table_a`,
		`INSERT INTO TableA (KeyField, Value1, Value2, Description) VALUES (?, ?, ?, ?)`,
		len(rows), func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.KeyField, r.Value1, r.Value2, r.Description}
		})
}

func (d *DB) InsertTableB(ctx context.Context, rows []tables.TableBRow) error {
	return d.insert(ctx, `insert_table_b`,
		`INSERT INTO TableB (KeyField, Value3, Value4, Status) VALUES (?, ?, ?, ?)`,
		len(rows), func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.KeyField, r.Value3, r.Value4.Format(timeLayout), r.Status}
		})
}

func (d *DB) InsertMaster(ctx context.Context, rows []tables.MasterRow) error {
	return d.insert(ctx, `insert_master`,
		`INSERT INTO Master (MKey, MText, Num) VALUES (?, ?, ?)`,
		len(rows), func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.MKey, r.MText, r.Num}
		})
}

func (d *DB) InsertSlave(ctx context.Context, rows []tables.SlaveRow) error {
	return d.insert(ctx, `insert_slave`,
		`INSERT INTO Slave (SKey, SText, Num) VALUES (?, ?, ?)`,
		len(rows), func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.SKey, r.SText, r.Num}
		})
}

// SortTables refills the *_srt tables from their sources in key order.
func (d *DB) SortTables(ctx context.Context) error {
	return d.exec(ctx, `sort_tables`,
		`DELETE FROM TableA_srt`,
		`DELETE FROM TableB_srt`,
		`DELETE FROM Master_srt`,
		`DELETE FROM Slave_srt`,
		`INSERT INTO TableA_srt SELECT * FROM TableA ORDER BY KeyField`,
		`INSERT INTO TableB_srt SELECT * FROM TableB ORDER BY KeyField`,
		`INSERT INTO Master_srt SELECT * FROM Master ORDER BY MKey`,
		`INSERT INTO Slave_srt SELECT * FROM Slave ORDER BY SKey`,
	)
}

// ClearTables empties every relation and result table.
func (d *DB) ClearTables(ctx context.Context) error {
	return d.exec(ctx, `clear_tables`,
		`DELETE FROM TableA`,
		`DELETE FROM TableB`,
		`DELETE FROM TableA_srt`,
		`DELETE FROM TableB_srt`,
		`DELETE FROM JoinResult`,
		`DELETE FROM Master`,
		`DELETE FROM Slave`,
		`DELETE FROM Master_srt`,
		`DELETE FROM Slave_srt`,
		`DELETE FROM Result`,
	)
}

func (d *DB) ClearResults(ctx context.Context) error {
	return d.exec(ctx, `clear_results`, `DELETE FROM JoinResult`, `DELETE FROM Result`)
}

func (d *DB) ClearJoinResults(ctx context.Context) error {
	return d.exec(ctx, `clear_join_results`, `DELETE FROM JoinResult`)
}

func (d *DB) ClearAggregateResults(ctx context.Context) error {
	return d.exec(ctx, `clear_aggregate_results`, `DELETE FROM Result`)
}

// query runs query and scans every row with scan.
func (d *DB) query(ctx context.Context, operation, query string, scan func(rows *sql.Rows) error) error {
	defer d.observe(operation, time.Now())

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`%s query failed`, operation))
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`%s scan failed`, operation))
		}
	}

	if err := rows.Err(); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`%s iteration failed`, operation))
	}

	return nil
}

func (d *DB) SortedTableA(ctx context.Context) ([]tables.TableARow, error) {
	var out []tables.TableARow
	err := d.query(ctx, `read_table_a`,
		`SELECT KeyField, Value1, Value2, Description FROM TableA_srt ORDER BY KeyField`,
		func(rows *sql.Rows) error {
			var r tables.TableARow
			if err := rows.Scan(&r.KeyField, &r.Value1, &r.Value2, &r.Description); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})

	return out, err
}

func (d *DB) SortedTableB(ctx context.Context) ([]tables.TableBRow, error) {
	var out []tables.TableBRow
	err := d.query(ctx, `read_table_b`,
		`SELECT KeyField, Value3, Value4, Status FROM TableB_srt ORDER BY KeyField`,
		func(rows *sql.Rows) error {
			var r tables.TableBRow
			var value4 string
			if err := rows.Scan(&r.KeyField, &r.Value3, &value4, &r.Status); err != nil {
				return err
			}

			t, err := time.Parse(timeLayout, value4)
			if err != nil {
				return err
			}
			r.Value4 = t

			out = append(out, r)
			return nil
		})

	return out, err
}

func (d *DB) SortedMaster(ctx context.Context) ([]tables.MasterRow, error) {
	var out []tables.MasterRow
	err := d.query(ctx, `read_master`,
		`SELECT MKey, MText, Num FROM Master_srt ORDER BY MKey`,
		func(rows *sql.Rows) error {
			var r tables.MasterRow
			if err := rows.Scan(&r.MKey, &r.MText, &r.Num); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})

	return out, err
}

func (d *DB) SortedSlave(ctx context.Context) ([]tables.SlaveRow, error) {
	var out []tables.SlaveRow
	err := d.query(ctx, `read_slave`,
		`SELECT SKey, SText, Num FROM Slave_srt ORDER BY SKey`,
		func(rows *sql.Rows) error {
			var r tables.SlaveRow
			if err := rows.Scan(&r.SKey, &r.SText, &r.Num); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})

	return out, err
}

func (d *DB) SaveJoinResults(ctx context.Context, results []tables.JoinResult) error {
	return d.insert(ctx, `save_join_results`,
		`INSERT INTO JoinResult (KeyField, Value1, Value3, TotalValue, Description, Status) VALUES (?, ?, ?, ?, ?, ?)`,
		len(results), func(i int) []interface{} {
			r := results[i]
			return []interface{}{r.KeyField, r.Value1, r.Value3, r.TotalValue, r.Description, r.Status}
		})
}

func (d *DB) SaveAggregateResults(ctx context.Context, results []tables.AggregateResult) error {
	return d.insert(ctx, `save_aggregate_results`,
		`INSERT INTO Result (RKey, RText, NUMAVG) VALUES (?, ?, ?)`,
		len(results), func(i int) []interface{} {
			r := results[i]
			return []interface{}{r.RKey, r.RText, r.NumAvg}
		})
}

// JoinResults reads JoinResult back in canonical order, which makes result
// sets of different strategies comparable.
func (d *DB) JoinResults(ctx context.Context) ([]tables.JoinResult, error) {
	var out []tables.JoinResult
	err := d.query(ctx, `read_join_results`,
		`SELECT KeyField, Value1, Value3, TotalValue, Description, Status FROM JoinResult
		ORDER BY KeyField, Value1, Value3, TotalValue, Description, Status`,
		func(rows *sql.Rows) error {
			var r tables.JoinResult
			if err := rows.Scan(&r.KeyField, &r.Value1, &r.Value3, &r.TotalValue, &r.Description, &r.Status); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})

	return out, err
}

func (d *DB) AggregateResults(ctx context.Context) ([]tables.AggregateResult, error) {
	var out []tables.AggregateResult
	err := d.query(ctx, `read_aggregate_results`,
		`SELECT RKey, RText, NUMAVG FROM Result ORDER BY RKey, RText, NUMAVG`,
		func(rows *sql.Rows) error {
			var r tables.AggregateResult
			if err := rows.Scan(&r.RKey, &r.RText, &r.NumAvg); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})

	return out, err
}
