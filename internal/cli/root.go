// Package cli provides the command-line interface for sqldeck.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sqldeck/sqldeck/internal/config"
	"github.com/sqldeck/sqldeck/internal/engine"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sqldeck",
		Short: "sqldeck - PostgreSQL workbench for the terminal",
		Long: `sqldeck executes SQL against registered PostgreSQL servers: ad-hoc
statements, multi-statement script files with inline COPY data, cached
schema browsing, and query history.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: sqldeck.yaml)")
	rootCmd.PersistentFlags().String("state-path", "", "Path to the metadata cache database")
	rootCmd.PersistentFlags().String("credentials-path", "", "Path to the credential file")
	rootCmd.PersistentFlags().Int("pool-max-conns", 0, "Max connections per server pool")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (table|json|csv)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(newExecCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRefreshCommand())
	rootCmd.AddCommand(newSchemaCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newMetricsCommand())

	return rootCmd
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newEngine assembles the engine from the loaded configuration.
func newEngine() (*engine.Engine, error) {
	for _, path := range []string{cfg.StatePath, cfg.CredentialsPath} {
		if dir := filepath.Dir(path); dir != "." && dir != "" && path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	return engine.New(engine.Config{
		StatePath:       cfg.StatePath,
		CredentialsPath: cfg.CredentialsPath,
		PoolMaxConns:    int32(cfg.PoolMaxConns),
		SweepInterval:   cfg.SweepInterval,
	}, logger)
}
