package cmd

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/spf13/cobra"

	"dbcopy/copier"
	"dbcopy/internal"
	"dbcopy/processor"
)

var planCmd = &cobra.Command{
	Use:           "plan",
	Short:         "Print the commands a copy would run without running them",
	Args:          cobra.NoArgs,
	RunE:          runPlan,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var passwordPattern = regexp.MustCompile(`(--password=|PGPASSWORD=)'(?:[^']|'\\'')*'`)

func maskPasswords(command string) string {
	return passwordPattern.ReplaceAllString(command, "$1'****'")
}

func runPlan(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := readCopyOptions(cmd, cfg.Defaults)
	if err != nil {
		return err
	}

	source, err := openSource(cfg, opts)
	if err != nil {
		return formatError(err)
	}
	defer source.Close()

	// Plan never submits, so the runner is never used.
	c := copier.New(processor.New(opts.threads), source)
	if err := opts.configure(c); err != nil {
		return formatError(err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var jobs []processor.Job
	err = internal.WithSpinner("Planning copy", func() error {
		jobs, err = c.Plan(ctx)
		return err
	})
	if err != nil {
		return formatError(err)
	}

	printPlan(cmd.OutOrStdout(), jobs)
	return nil
}

func printPlan(w io.Writer, jobs []processor.Job) {
	var current processor.Phase
	for _, job := range jobs {
		if job.Phase != current {
			current = job.Phase
			fmt.Fprintf(w, "# %s\n", current)
		}
		fmt.Fprintln(w, maskPasswords(job.Command))
	}
	fmt.Fprintf(w, "# %d jobs\n", len(jobs))
}

func init() {
	rootCmd.AddCommand(planCmd)

	addCopyFlags(planCmd)
}
