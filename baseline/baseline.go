// Package baseline runs the joins natively inside SQLite, as the reference the
// bucket joins are measured against.
package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/tryfix/bucketjoin/storage/sqlite"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

const joinTables = `
INSERT INTO JoinResult (KeyField, Value1, Value3, TotalValue, Description, Status)
SELECT a.KeyField, a.Value1, b.Value3, a.Value1 * b.Value3 AS TotalValue, a.Description, b.Status
FROM TableA_srt a
INNER JOIN TableB_srt b ON a.KeyField = b.KeyField
ORDER BY a.KeyField`

const aggregateMasterSlave = `
INSERT INTO Result (RKey, RText, NUMAVG)
SELECT m.MKey, COUNT(*), AVG(m.Num * s.Num)
FROM Master_srt m
INNER JOIN Slave_srt s ON m.MKey = s.SKey
GROUP BY m.MKey
ORDER BY m.MKey`

type Executor struct {
	db     *sqlite.DB
	logger log.Logger
}

func NewExecutor(db *sqlite.DB, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	return &Executor{db: db, logger: logger.NewLog(log.Prefixed(`baseline`))}
}

// JoinTables writes the TableA, TableB inner join into JoinResult and returns
// the number of rows written.
func (e *Executor) JoinTables(ctx context.Context) (int64, error) {
	return e.run(ctx, `join_tables`, joinTables)
}

// AggregateMasterSlave writes one Result row per key present in Master and Slave.
func (e *Executor) AggregateMasterSlave(ctx context.Context) (int64, error) {
	return e.run(ctx, `aggregate_master_slave`, aggregateMasterSlave)
}

func (e *Executor) run(ctx context.Context, name, query string) (int64, error) {
	begin := time.Now()

	res, err := e.db.SQL().ExecContext(ctx, query)
	if err != nil {
		return 0, errors.WithPrevious(err, fmt.Sprintf(`native %s failed`, name))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithPrevious(err, fmt.Sprintf(`native %s row count unavailable`, name))
	}

	e.logger.TraceContext(ctx, fmt.Sprintf(`native %s wrote %d rows in %s`, name, n, time.Since(begin)))

	return n, nil
}
