package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dbcopy/config"
	"dbcopy/internal"
)

var rootCmd = &cobra.Command{
	Use:   "dbcopy",
	Short: "Copy a database table by table with parallel dump pipelines",
	Long: `dbcopy copies a database from one server to another in three phases:
schema, data and triggers. Each table is copied by its own dump | load
pipeline and large tables are split into row chunks that run in parallel.

Connections are configured in ~/.dbcopy/config.json and referenced as client/env.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. An interrupt cancels the running copy and
// kills its pipelines.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.dbcopy/config.json)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
}

func setupLogging(cmd *cobra.Command) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		internal.SetLogLevel("debug")
	} else {
		internal.SetLogLevel("error")
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadConfigFrom(path)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
