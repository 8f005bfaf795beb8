package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tryfix/bucketjoin/bench"
	"github.com/tryfix/bucketjoin/storage/sqlite"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

var flags struct {
	config   string
	logLevel string
	database string
	generate bool
	repeat   int
	workers  []int
	scenario string
	planWorkers int
}

var rootCmd = &cobra.Command{
	Use:           `bucketjoin`,
	Short:         `benchmarks sort-merge bucket joins against the native sqlite join`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var generateCmd = &cobra.Command{
	Use:   `generate`,
	Short: `replaces the stored relations with generated rows and sorts them`,
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

var runCmd = &cobra.Command{
	Use:   `run`,
	Short: `times every join strategy over the stored relations`,
	Long: `
	Runs the native, sequential and parallel joins over the sorted tables for every
	configured scenario and prints one report per run. Exits with an error when a
	bucket join result differs from the native one.
	`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var planCmd = &cobra.Command{
	Use:   `plan`,
	Short: `prints the worker key partitions of a parallel join as a DOT graph`,
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

var serveCmd = &cobra.Command{
	Use:   `serve`,
	Short: `serves run reports and prometheus metrics over http`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, `config`, `c`, ``, `yaml config file, defaults are used when empty`)
	pf.StringVar(&flags.logLevel, `log-level`, `INFO`, `one of TRACE, DEBUG, INFO, WARN, ERROR`)
	pf.StringVar(&flags.database, `database`, ``, `sqlite database path, overrides the config`)

	runCmd.Flags().BoolVar(&flags.generate, `generate`, false, `generate the relations before running`)
	runCmd.Flags().IntVar(&flags.repeat, `repeat`, 0, `runs per scenario, overrides the config`)
	runCmd.Flags().IntSliceVar(&flags.workers, `workers`, nil, `parallel worker counts, overrides the config`)

	planCmd.Flags().StringVar(&flags.scenario, `scenario`, string(bench.ScenarioTables), `tables or master_slave`)
	planCmd.Flags().IntVar(&flags.planWorkers, `workers`, 4, `worker count`)

	serveCmd.Flags().BoolVar(&flags.generate, `generate`, false, `generate the relations before serving`)

	rootCmd.AddCommand(generateCmd, runCmd, planCmd, serveCmd)
}

type app struct {
	config  *bench.Config
	db      *sqlite.DB
	sinks   *bench.Sinks
	harness *bench.Harness
	logger  log.Logger
}

func (a *app) Close() {
	if a.sinks != nil {
		if err := a.sinks.Close(); err != nil {
			a.logger.Error(err)
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error(err)
	}
}

func setup() (*app, error) {
	conf := bench.NewConfig()
	if flags.config != `` {
		c, err := bench.LoadConfig(flags.config)
		if err != nil {
			return nil, err
		}
		conf = c
	}

	if flags.database != `` {
		conf.Database = flags.database
	}

	if flags.repeat > 0 {
		conf.Repeat = flags.repeat
	}

	if len(flags.workers) > 0 {
		conf.Workers = flags.workers
	}

	logger := log.NewLog(
		log.WithLevel(log.Level(strings.ToUpper(flags.logLevel))),
		log.WithColors(true),
		log.WithFilePath(true),
	).Log()

	conf.Logger = logger
	conf.MetricsReporter = metrics.PrometheusReporter(metrics.ReporterConf{System: `bucket_join`, Subsystem: conf.Id, ConstLabels: nil})

	dbConf := sqlite.NewConfig()
	dbConf.Path = conf.Database
	dbConf.Logger = logger
	dbConf.MetricsReporter = conf.MetricsReporter

	db, err := sqlite.Open(dbConf)
	if err != nil {
		return nil, err
	}

	a := &app{config: conf, db: db, logger: logger}

	if err := db.EnsureSchema(context.Background()); err != nil {
		a.Close()
		return nil, err
	}

	a.sinks, err = bench.NewSinks(conf, db)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.harness, err = bench.NewHarness(conf, db, a.sinks, nil)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Debug(fmt.Sprintf("config\n%s", conf))

	return a, nil
}

// interruptible ends on SIGINT or SIGTERM.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runGenerate(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := interruptible()
	defer cancel()

	return a.harness.Generate(ctx)
}

func runRun(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := interruptible()
	defer cancel()

	if flags.generate || a.config.Generate.Enabled {
		if err := a.harness.Generate(ctx); err != nil {
			return err
		}
	}

	if a.config.Http.Enabled {
		srv := bench.MakeEndpoints(a.config.Http.Host, a.harness, a.logger.NewLog(log.Prefixed(`http`)))
		defer srv.Close()
	}

	reports, err := a.harness.RunAll(ctx)
	for _, r := range reports {
		fmt.Fprintln(cmd.OutOrStdout(), r)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), a.harness.Timings())

	for _, r := range reports {
		if !r.Conforms() {
			return errors.New(fmt.Sprintf(`run %s results differ from the native join`, r.Id))
		}
	}

	return nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	dot, err := a.harness.Plan(context.Background(), bench.Scenario(flags.scenario), flags.planWorkers)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), dot)
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := interruptible()
	defer cancel()

	if flags.generate {
		if err := a.harness.Generate(ctx); err != nil {
			return err
		}
	}

	srv := bench.MakeEndpoints(a.config.Http.Host, a.harness, a.logger.NewLog(log.Prefixed(`http`)))
	<-ctx.Done()

	shutdown, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	a.logger.Info(`shutting down`)
	return srv.Shutdown(shutdown)
}
