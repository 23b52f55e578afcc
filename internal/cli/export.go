package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqldeck/sqldeck/internal/engine"
)

func newExportCommand() *cobra.Command {
	var (
		tableName string
		withData  bool
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "export <server-id> <schema>",
		Short: "Export schema DDL (and optionally data) as replayable SQL",
		Long: `Export a schema, or one table of it, as SQL that the run command can
replay: CREATE TABLE statements, index definitions, and with --data the
rows as inline COPY blocks.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			opts := engine.ExportOptions{IncludeData: withData}
			if tableName != "" {
				return eng.ExportTable(cmd.Context(), args[0], args[1], tableName, out, opts)
			}
			return eng.ExportSchema(cmd.Context(), args[0], args[1], out, opts)
		},
	}

	cmd.Flags().StringVarP(&tableName, "table", "t", "", "Export only this table")
	cmd.Flags().BoolVar(&withData, "data", false, "Include table data as COPY blocks")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to a file instead of stdout")

	return cmd
}

func newMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <server-id>",
		Short: "Show server health metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			m, err := eng.Metrics(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if cfg.Output == "json" {
				return renderJSON(cmd.OutOrStdout(), m)
			}

			cols := []string{"metric", "value"}
			rows := []map[string]any{
				{"metric": "active_connections", "value": m.ActiveConnections},
				{"metric": "total_connections", "value": m.TotalConnections},
				{"metric": "max_connections", "value": m.MaxConnections},
				{"metric": "database_size_bytes", "value": m.DatabaseSizeBytes},
				{"metric": "cache_hit_ratio", "value": fmt.Sprintf("%.4f", m.CacheHitRatio)},
				{"metric": "uptime_seconds", "value": m.UptimeSeconds},
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cfg.Output)
		},
	}
}
