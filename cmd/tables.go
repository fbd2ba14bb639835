package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dbcopy/internal"
)

var tablesCmd = &cobra.Command{
	Use:           "tables",
	Short:         "List the tables of a connection with their row counts",
	Args:          cobra.NoArgs,
	RunE:          runTables,
	SilenceUsage:  true,
	SilenceErrors: true,
}

type tableCount struct {
	name string
	rows int64
}

func runTables(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sourceStr, _ := cmd.Flags().GetString("source")
	conn, err := resolveConnection(cfg, sourceStr, "source")
	if err != nil {
		return formatError(err)
	}

	// Only the read queries are used, so the connection doubles as destination.
	source, err := newCommandSource(*conn, *conn)
	if err != nil {
		return formatError(err)
	}
	defer source.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var counts []tableCount
	err = internal.WithSpinner(fmt.Sprintf("Reading tables of %s", sourceStr), func() error {
		tables, err := source.ListTables(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		for _, table := range tables {
			rows, err := source.RowCount(ctx, table)
			if err != nil {
				return fmt.Errorf("failed to count rows of %s: %w", table, err)
			}
			counts = append(counts, tableCount{name: table, rows: rows})
		}
		return nil
	})
	if err != nil {
		return formatError(err)
	}

	printTables(cmd.OutOrStdout(), counts)
	return nil
}

func printTables(w io.Writer, counts []tableCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	var total int64
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\t\n", c.name, c.rows)
		total += c.rows
	}
	fmt.Fprintf(tw, "%d tables\t%d\t\n", len(counts), total)
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(tablesCmd)

	tablesCmd.Flags().String("source", "", "Connection in format client/env (required)")
	tablesCmd.MarkFlagRequired("source")
}
