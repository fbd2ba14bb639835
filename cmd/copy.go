package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dbcopy/config"
	"dbcopy/copier"
	"dbcopy/dynamodb"
	"dbcopy/internal"
	"dbcopy/processor"
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy schema, data and triggers from source to destination",
	Example: `  dbcopy copy --source acme/prod --dest acme/local --threads 8 --row-limit 500000
  dbcopy copy --source acme/prod --dest acme/local --exclude-data audit_log,sessions
  dbcopy copy --source acme/prod --dest acme/local --interactive`,
	Args:          cobra.NoArgs,
	RunE:          runCopy,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func runCopy(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := readCopyOptions(cmd, cfg.Defaults)
	if err != nil {
		return err
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive && (len(opts.includeTables) > 0 || len(opts.excludeTables) > 0) {
		return fmt.Errorf("--interactive can not be combined with --include-tables or --exclude-tables")
	}

	history, _ := cmd.Flags().GetString("history")
	var recorder *dynamodb.Recorder
	if history != "" {
		if recorder, err = newRecorder(cfg, history); err != nil {
			return err
		}
	}

	source, err := openSource(cfg, opts)
	if err != nil {
		return formatError(err)
	}
	defer source.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	internal.Logger.Info("Starting copy operation",
		"source", opts.source,
		"dest", opts.dest,
		"threads", opts.threads,
		"rowLimit", opts.rowLimit,
		"copyTriggers", opts.copyTriggers)

	progress := internal.NewProgress()
	proc := processor.New(opts.threads, processor.WithOnComplete(func(processor.Result) {
		progress.Incr()
	}))

	c := copier.New(proc, source)
	if err := opts.configure(c); err != nil {
		return formatError(err)
	}

	if interactive {
		selected, err := selectTables(ctx, source)
		if err != nil {
			return formatError(err)
		}
		c.SetAllTables(selected)
	}

	c.OnPhase(func(phase processor.Phase, jobs int) {
		progress.StartPhase(string(phase), jobs)
	})

	start := time.Now()
	report, copyErr := c.CopyAll(ctx)
	progress.Stop()

	if recorder != nil {
		if err := recordRun(context.Background(), recorder, opts, report, copyErr); err != nil {
			internal.Logger.Warn("Failed to record run history", "error", err)
		}
	}

	if copyErr != nil {
		return formatError(copyErr)
	}

	fmt.Printf("✅ Copied %d tables (%d with data) from %s to %s in %s\n",
		len(report.Tables), len(report.DataTables), opts.source, opts.dest,
		time.Since(start).Round(time.Millisecond))
	return nil
}

// selectTables lists the source tables with their row counts and asks the
// user which ones to copy.
func selectTables(ctx context.Context, source copier.CommandSource) ([]string, error) {
	var (
		tables []string
		counts = make(map[string]int64)
	)

	err := internal.WithSpinner("Reading source tables", func() error {
		var err error
		tables, err = source.ListTables(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		for _, table := range tables {
			n, err := source.RowCount(ctx, table)
			if err != nil {
				return fmt.Errorf("failed to count rows of %s: %w", table, err)
			}
			counts[table] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return internal.NewTableSelector(tables, counts).SelectTables()
}

func newRecorder(cfg *config.Config, history string) (*dynamodb.Recorder, error) {
	cs, err := config.ParseConnectionString(history)
	if err != nil {
		return nil, fmt.Errorf("invalid history connection string: %w", err)
	}

	historyConfig, err := cfg.GetHistoryConfig(cs.Client, cs.Env)
	if err != nil {
		return nil, err
	}

	recorder, err := dynamodb.NewRecorder(*historyConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create history recorder: %w", err)
	}
	return recorder, nil
}

func recordRun(ctx context.Context, recorder *dynamodb.Recorder, opts *copyOptions, report *copier.Report, copyErr error) error {
	if err := recorder.EnsureTable(ctx); err != nil {
		return err
	}
	return recorder.Record(ctx, runRecord(opts, report, copyErr))
}

func runRecord(opts *copyOptions, report *copier.Report, copyErr error) dynamodb.RunRecord {
	run := dynamodb.RunRecord{
		RunID:       dynamodb.NewRunID(),
		Source:      opts.source,
		Destination: opts.dest,
		Status:      dynamodb.StatusSucceeded,
		PhaseJobs:   make(map[string]int),
	}

	if report != nil {
		run.Tables = report.Tables
		run.DataTables = report.DataTables
		run.StartedAt = report.StartedAt
		run.FinishedAt = report.FinishedAt
		for _, phase := range report.Phases {
			run.PhaseJobs[string(phase.Phase)] = phase.Jobs
		}
	}

	if copyErr != nil {
		run.Status = dynamodb.StatusFailed
		run.Error = copyErr.Error()
	}
	return run
}

func formatError(err error) error {
	if err == nil {
		return nil
	}

	if copier.IsConfigurationError(err) {
		return fmt.Errorf("❌ Invalid table selection: %s", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("❌ Copy did not finish within the configured timeout.")
	}

	if errors.Is(err, internal.ErrSelectionCancelled) {
		return fmt.Errorf("❌ Table selection cancelled.")
	}

	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") {
		return fmt.Errorf("❌ Cannot connect to database server. Please check your connection settings.")
	}

	if strings.Contains(errStr, "Access denied") || strings.Contains(errStr, "password authentication failed") {
		return fmt.Errorf("❌ Database authentication failed. Please check your username and password.")
	}

	if strings.Contains(errStr, "Unknown database") || (strings.Contains(errStr, "database") && strings.Contains(errStr, "does not exist")) {
		return fmt.Errorf("❌ Database does not exist. Please check your database name.")
	}

	var failed *processor.ProcessFailedError
	if errors.As(err, &failed) {
		return fmt.Errorf("❌ %s\ncommand: %s", errStr, maskPasswords(failed.Job.Command))
	}

	return fmt.Errorf("❌ %s", errStr)
}

func init() {
	rootCmd.AddCommand(copyCmd)

	addCopyFlags(copyCmd)
	addRunFlags(copyCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("interactive", false, "Pick the tables to copy from a list")
	cmd.Flags().String("history", "", "Record the run in the DynamoDB history table configured as client/env")
}
