package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dbcopy/config"
	"dbcopy/copier"
	"dbcopy/mysql"
	"dbcopy/postgres"
)

type commandSource interface {
	copier.CommandSource
	Close() error
}

// newCommandSource is replaced in tests.
var newCommandSource = func(read, write config.Connection) (commandSource, error) {
	if read.Engine != write.Engine {
		return nil, fmt.Errorf("source engine %s does not match destination engine %s", read.Engine, write.Engine)
	}

	switch read.Engine {
	case config.EngineMySQL:
		return mysql.NewSource(read, write), nil
	case config.EnginePostgres:
		return postgres.NewSource(read, write), nil
	default:
		return nil, fmt.Errorf("unsupported engine: %s", read.Engine)
	}
}

func resolveConnection(cfg *config.Config, connStr, role string) (*config.Connection, error) {
	cs, err := config.ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s connection string: %w", role, err)
	}

	conn, err := cfg.GetConnection(cs.Client, cs.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s connection: %w", role, err)
	}

	if err := conn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s connection %s: %w", role, cs, err)
	}
	return conn, nil
}

type copyOptions struct {
	source        string
	dest          string
	threads       int
	rowLimit      int64
	includeTables []string
	excludeTables []string
	includeData   []string
	excludeData   []string
	copyTriggers  bool
	timeout       time.Duration
}

func addCopyFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "Source in format client/env (required)")
	cmd.Flags().String("dest", "", "Destination in format client/env (required)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("dest")

	cmd.Flags().Int("threads", 1, "Number of copy pipelines to run at once")
	cmd.Flags().Int64("row-limit", 0, "Split tables with more rows than this into chunks (0 disables chunking)")
	cmd.Flags().StringSlice("include-tables", nil, "Only copy these tables")
	cmd.Flags().StringSlice("exclude-tables", nil, "Copy every table except these")
	cmd.Flags().StringSlice("include-data", nil, "Only copy rows of these tables")
	cmd.Flags().StringSlice("exclude-data", nil, "Copy rows of every table except these")
	cmd.Flags().Bool("skip-triggers", false, "Do not copy triggers")
	cmd.Flags().Duration("timeout", 0, "Abort the copy after this long (0 means no limit)")
}

// readCopyOptions merges the command flags over the config defaults. Flags
// win only when set explicitly.
func readCopyOptions(cmd *cobra.Command, defaults config.Defaults) (*copyOptions, error) {
	flags := cmd.Flags()

	opts := &copyOptions{
		threads:      defaults.Threads,
		rowLimit:     defaults.RowLimit,
		copyTriggers: defaults.CopyTriggers,
	}

	timeout, err := defaults.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	opts.timeout = timeout

	opts.source, _ = flags.GetString("source")
	opts.dest, _ = flags.GetString("dest")
	if opts.source == "" || opts.dest == "" {
		return nil, fmt.Errorf("both --source and --dest are required")
	}
	if strings.EqualFold(opts.source, opts.dest) {
		return nil, fmt.Errorf("source and destination must differ")
	}

	if flags.Changed("threads") {
		opts.threads, _ = flags.GetInt("threads")
	}
	if flags.Changed("row-limit") {
		opts.rowLimit, _ = flags.GetInt64("row-limit")
	}
	if flags.Changed("skip-triggers") {
		skip, _ := flags.GetBool("skip-triggers")
		opts.copyTriggers = !skip
	}
	if flags.Changed("timeout") {
		opts.timeout, _ = flags.GetDuration("timeout")
	}

	opts.includeTables, _ = flags.GetStringSlice("include-tables")
	opts.excludeTables, _ = flags.GetStringSlice("exclude-tables")
	opts.includeData, _ = flags.GetStringSlice("include-data")
	opts.excludeData, _ = flags.GetStringSlice("exclude-data")

	if opts.threads < 1 {
		return nil, fmt.Errorf("--threads must be at least 1")
	}
	if opts.rowLimit < 0 {
		return nil, fmt.Errorf("--row-limit can not be negative")
	}

	return opts, nil
}

// configure applies the table filters and copy options to c.
func (o *copyOptions) configure(c *copier.Copier) error {
	c.SetRowLimit(o.rowLimit).SetCopyTriggers(o.copyTriggers)

	if len(o.includeTables) > 0 {
		if err := c.IncludeTables(o.includeTables...); err != nil {
			return err
		}
	}
	if len(o.excludeTables) > 0 {
		if err := c.ExcludeTables(o.excludeTables...); err != nil {
			return err
		}
	}
	if len(o.includeData) > 0 {
		if err := c.IncludeDataFor(o.includeData...); err != nil {
			return err
		}
	}
	if len(o.excludeData) > 0 {
		if err := c.ExcludeDataFor(o.excludeData...); err != nil {
			return err
		}
	}
	return nil
}

// openSource resolves both connections and builds the engine's command source.
func openSource(cfg *config.Config, opts *copyOptions) (commandSource, error) {
	read, err := resolveConnection(cfg, opts.source, "source")
	if err != nil {
		return nil, err
	}

	write, err := resolveConnection(cfg, opts.dest, "destination")
	if err != nil {
		return nil, err
	}

	return newCommandSource(*read, *write)
}
