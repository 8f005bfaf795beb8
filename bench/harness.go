package bench

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/tryfix/bucketjoin/baseline"
	"github.com/tryfix/bucketjoin/generator"
	"github.com/tryfix/bucketjoin/graph"
	"github.com/tryfix/bucketjoin/join"
	"github.com/tryfix/bucketjoin/sink"
	"github.com/tryfix/bucketjoin/source"
	"github.com/tryfix/bucketjoin/storage/sqlite"
	"github.com/tryfix/bucketjoin/tables"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
	"github.com/tryfix/traceable-context"
)

// Harness times the bucket joins against the native SQLite join over the same
// sorted tables and checks that all of them agree.
type Harness struct {
	config   *Config
	db       *sqlite.DB
	native   *baseline.Executor
	sinks    *Sinks
	registry *Registry
	timers   gometrics.Registry
	logger   log.Logger

	pairs struct {
		sequential *join.Sequential[string, tables.TableARow, tables.TableBRow, tables.JoinResult]
		parallel   *join.Parallel[string, tables.TableARow, tables.TableBRow, tables.JoinResult]
	}
	aggregates struct {
		sequential *join.Sequential[int, tables.MasterRow, tables.SlaveRow, tables.AggregateResult]
		parallel   *join.Parallel[int, tables.MasterRow, tables.SlaveRow, tables.AggregateResult]
	}
}

func NewHarness(config *Config, db *sqlite.DB, sinks *Sinks, registry *Registry) (*Harness, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	if sinks == nil {
		sinks = new(Sinks)
	}

	if registry == nil {
		registry = NewRegistry(100)
	}

	strategy, err := join.ParsePartitionStrategy(config.Strategy)
	if err != nil {
		return nil, err
	}

	// one join config, so every joiner shares its metrics and worker pool
	joinConf := join.NewConfig()
	joinConf.Id = config.Id
	joinConf.Strategy = strategy
	joinConf.Timeout = config.Timeout
	joinConf.Logger = config.Logger
	joinConf.MetricsReporter = config.MetricsReporter

	h := &Harness{
		config:   config,
		db:       db,
		native:   baseline.NewExecutor(db, config.Logger),
		sinks:    sinks,
		registry: registry,
		timers:   gometrics.NewRegistry(),
		logger:   config.Logger.NewLog(log.Prefixed(`bench`)),
	}

	if h.pairs.sequential, err = join.NewSequential(tables.PairJoiner(), joinConf); err != nil {
		return nil, err
	}

	if h.pairs.parallel, err = join.NewParallel(tables.PairJoiner(), joinConf); err != nil {
		return nil, err
	}

	if h.aggregates.sequential, err = join.NewSequential(tables.Aggregator(), joinConf); err != nil {
		return nil, err
	}

	if h.aggregates.parallel, err = join.NewParallel(tables.Aggregator(), joinConf); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Harness) Registry() *Registry {
	return h.registry
}

// Generate replaces the stored relations with freshly generated ones and
// rebuilds the sorted tables.
func (h *Harness) Generate(ctx context.Context) error {
	conf := h.config.Generate
	g := generator.New(conf.Seed, time.Now())

	a, err := g.TableA(conf.TableA, conf.KeyLength)
	if err != nil {
		return err
	}

	b, err := g.TableB(conf.TableB, conf.KeyLength)
	if err != nil {
		return err
	}

	m, err := g.Master(conf.MasterKeys, conf.MinRecords, conf.MaxRecords)
	if err != nil {
		return err
	}

	s, err := g.Slave(conf.SlaveKeys, conf.MinRecords, conf.MaxRecords)
	if err != nil {
		return err
	}

	steps := []func(ctx context.Context) error{
		h.db.EnsureSchema,
		h.db.ClearTables,
		func(ctx context.Context) error { return h.db.InsertTableA(ctx, a) },
		func(ctx context.Context) error { return h.db.InsertTableB(ctx, b) },
		func(ctx context.Context) error { return h.db.InsertMaster(ctx, m) },
		func(ctx context.Context) error { return h.db.InsertSlave(ctx, s) },
		h.db.SortTables,
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			return errors.WithPrevious(err, `data generation failed`)
		}
	}

	h.logger.Info(fmt.Sprintf(`generated %d TableA, %d TableB, %d Master and %d Slave rows`,
		len(a), len(b), len(m), len(s)))

	return nil
}

// RunAll runs the configured scenarios Repeat times and returns one report per run.
func (h *Harness) RunAll(ctx context.Context) ([]*Report, error) {
	reports := make([]*Report, 0, h.config.Repeat)
	for i := 0; i < h.config.Repeat; i++ {
		r, err := h.Run(ctx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}

	return reports, nil
}

// Run times every configured scenario once, stores the report in the registry
// and returns it. A failing join or sink aborts the run.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	id := uuid.New()
	ctx, cancel := runContext(ctx, id)
	defer cancel()

	report := &Report{Id: id, Started: time.Now()}
	for _, s := range h.config.Scenarios {
		var sr ScenarioReport
		var err error

		switch s {
		case ScenarioTables:
			sr, err = runScenario(ctx, h, h.tablesScenario())
		case ScenarioMasterSlave:
			sr, err = runScenario(ctx, h, h.masterSlaveScenario())
		}
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`run [%s] scenario [%s] failed`, id, s))
		}

		report.Scenarios = append(report.Scenarios, sr)
	}
	report.Finished = time.Now()

	h.registry.Add(report)

	if !report.Conforms() {
		h.logger.ErrorContext(ctx, fmt.Sprintf(`run %s results differ from the native join`, id))
	}

	return report, nil
}

// Plan renders how the parallel joiner of scenario s would split the stored
// rows over workers, as a DOT graph.
func (h *Harness) Plan(ctx context.Context, s Scenario, workers int) (string, error) {
	switch s {
	case ScenarioTables:
		return planScenario(ctx, h.tablesScenario(), workers)
	case ScenarioMasterSlave:
		return planScenario(ctx, h.masterSlaveScenario(), workers)
	}

	return ``, errors.New(`unknown scenario [` + string(s) + `]`)
}

func planScenario[K cmp.Ordered, L, R, O any](ctx context.Context, s scenario[K, L, R, O], workers int) (string, error) {
	left, err := s.left.Rows(ctx)
	if err != nil {
		return ``, errors.WithPrevious(err, `cannot read left rows`)
	}

	right, err := s.right.Rows(ctx)
	if err != nil {
		return ``, errors.WithPrevious(err, `cannot read right rows`)
	}

	partitions, err := s.parallel.Plan(left, right, workers)
	if err != nil {
		return ``, err
	}

	return graph.Plan(string(s.name), partitions)
}

// runContext carries the run id for log tracing and sinks, and ends with parent.
func runContext(parent context.Context, id uuid.UUID) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(traceable_context.WithUUID(id))
	stop := context.AfterFunc(parent, cancel)
	if parent.Err() != nil {
		cancel()
	}

	return sink.WithRunId(ctx, id), func() {
		stop()
		cancel()
	}
}

type scenario[K cmp.Ordered, L, R, O any] struct {
	name       Scenario
	left       source.Source[K, L]
	right      source.Source[K, R]
	clear      func(ctx context.Context) error
	native     func(ctx context.Context) (int64, error)
	reference  func(ctx context.Context) ([]O, error)
	sequential *join.Sequential[K, L, R, O]
	parallel   *join.Parallel[K, L, R, O]
	same       func(a, b []O) bool
	sink       sink.Sink[K, O]
}

func (h *Harness) tablesScenario() scenario[string, tables.TableARow, tables.TableBRow, tables.JoinResult] {
	return scenario[string, tables.TableARow, tables.TableBRow, tables.JoinResult]{
		name: ScenarioTables,
		left: source.Func[string, tables.TableARow](func(ctx context.Context) ([]join.Row[string, tables.TableARow], error) {
			rows, err := h.db.SortedTableA(ctx)
			return tables.TableARows(rows), err
		}),
		right: source.Func[string, tables.TableBRow](func(ctx context.Context) ([]join.Row[string, tables.TableBRow], error) {
			rows, err := h.db.SortedTableB(ctx)
			return tables.TableBRows(rows), err
		}),
		clear:      h.db.ClearJoinResults,
		native:     h.native.JoinTables,
		reference:  h.db.JoinResults,
		sequential: h.pairs.sequential,
		parallel:   h.pairs.parallel,
		same:       tables.SameJoinResults,
		sink:       h.sinks.Tables,
	}
}

func (h *Harness) masterSlaveScenario() scenario[int, tables.MasterRow, tables.SlaveRow, tables.AggregateResult] {
	return scenario[int, tables.MasterRow, tables.SlaveRow, tables.AggregateResult]{
		name: ScenarioMasterSlave,
		left: source.Func[int, tables.MasterRow](func(ctx context.Context) ([]join.Row[int, tables.MasterRow], error) {
			rows, err := h.db.SortedMaster(ctx)
			return tables.MasterRows(rows), err
		}),
		right: source.Func[int, tables.SlaveRow](func(ctx context.Context) ([]join.Row[int, tables.SlaveRow], error) {
			rows, err := h.db.SortedSlave(ctx)
			return tables.SlaveRows(rows), err
		}),
		clear:      h.db.ClearAggregateResults,
		native:     h.native.AggregateMasterSlave,
		reference:  h.db.AggregateResults,
		sequential: h.aggregates.sequential,
		parallel:   h.aggregates.parallel,
		same: func(a, b []tables.AggregateResult) bool {
			return tables.SameAggregateResults(a, b, h.config.Epsilon)
		},
		sink: h.sinks.Aggregates,
	}
}

func runScenario[K cmp.Ordered, L, R, O any](ctx context.Context, h *Harness, s scenario[K, L, R, O]) (ScenarioReport, error) {
	report := ScenarioReport{Scenario: s.name}

	left, err := s.left.Rows(ctx)
	if err != nil {
		return report, errors.WithPrevious(err, `cannot read left rows`)
	}

	right, err := s.right.Rows(ctx)
	if err != nil {
		return report, errors.WithPrevious(err, `cannot read right rows`)
	}

	report.LeftRows, report.RightRows = len(left), len(right)

	if err := s.clear(ctx); err != nil {
		return report, err
	}

	var written int64
	d, err := h.timed(s.name, StrategyNative, 0, func() (err error) {
		written, err = s.native(ctx)
		return err
	})
	if err != nil {
		return report, err
	}

	expected, err := s.reference(ctx)
	if err != nil {
		return report, err
	}
	report.Results = append(report.Results, Result{Strategy: StrategyNative, Duration: d, Records: int(written), Conforms: true})

	var records []join.Record[K, O]
	d, err = h.timed(s.name, StrategySequential, 0, func() (err error) {
		records, err = s.sequential.Join(ctx, left, right)
		return err
	})
	if err != nil {
		return report, err
	}
	report.Results = append(report.Results, scenarioResult(ctx, h, s, StrategySequential, 0, d, records, expected))

	for _, workers := range h.config.Workers {
		var parallel []join.Record[K, O]
		d, err = h.timed(s.name, StrategyParallel, workers, func() (err error) {
			parallel, err = s.parallel.Join(ctx, left, right, workers)
			return err
		})
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, scenarioResult(ctx, h, s, StrategyParallel, workers, d, parallel, expected))
	}

	if s.sink != nil {
		if err := s.sink.Write(ctx, records); err != nil {
			return report, errors.WithPrevious(err, `cannot write results`)
		}
	}

	return report, nil
}

func scenarioResult[K cmp.Ordered, L, R, O any](ctx context.Context, h *Harness, s scenario[K, L, R, O], strategy string,
	workers int, d time.Duration, records []join.Record[K, O], expected []O) Result {

	conforms := s.same(tables.Values(records), expected)
	if !conforms {
		h.logger.ErrorContext(ctx, fmt.Sprintf(`%s %s join with %d workers returned %d records, native returned %d`,
			s.name, strategy, workers, len(records), len(expected)))
	}

	h.logger.InfoContext(ctx, fmt.Sprintf(`%s %s workers=%d took %s for %d records`, s.name, strategy, workers, d, len(records)))

	return Result{Strategy: strategy, Workers: workers, Duration: d, Records: len(records), Conforms: conforms}
}

func (h *Harness) timed(s Scenario, strategy string, workers int, fn func() error) (time.Duration, error) {
	begin := time.Now()
	if err := fn(); err != nil {
		return 0, err
	}

	d := time.Since(begin)
	gometrics.GetOrRegisterTimer(timerName(s, strategy, workers), h.timers).Update(d)

	return d, nil
}

func timerName(s Scenario, strategy string, workers int) string {
	if workers > 0 {
		return fmt.Sprintf(`%s.%s.%02d`, s, strategy, workers)
	}
	return fmt.Sprintf(`%s.%s`, s, strategy)
}

// Timings renders the timers aggregated over every run of this harness.
func (h *Harness) Timings() string {
	var names []string
	h.timers.Each(func(name string, _ interface{}) {
		names = append(names, name)
	})
	sort.Strings(names)

	out := new(bytes.Buffer)
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{`Timer`, `Runs`, `Mean`, `Min`, `Max`, `P95`})

	for _, name := range names {
		t, ok := h.timers.Get(name).(gometrics.Timer)
		if !ok {
			continue
		}

		snap := t.Snapshot()
		table.Append([]string{
			name,
			fmt.Sprint(snap.Count()),
			time.Duration(snap.Mean()).String(),
			time.Duration(snap.Min()).String(),
			time.Duration(snap.Max()).String(),
			time.Duration(snap.Percentile(0.95)).String(),
		})
	}
	table.Render()

	return out.String()
}
