package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqldeck/sqldeck/internal/state"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		search string
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "history <server-id>",
		Short: "Show query history for a server",
		Long: `Show query history for a server. By default the deduplicated view is
shown: repeated statements collapse into one row with an execution
count. Use --raw for the full chronological log.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			store := eng.Store()

			if raw {
				entries, err := store.History(args[0], limit)
				if err != nil {
					return err
				}
				cols := []string{"executed_at", "success", "sql"}
				rows := make([]map[string]any, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, map[string]any{
						"executed_at": time.UnixMilli(e.ExecutedAt).Format(time.RFC3339),
						"success":     e.Success,
						"sql":         e.SQL,
					})
				}
				return renderRows(cmd.OutOrStdout(), cols, rows, cfg.Output)
			}

			var entries []state.DedupEntry
			if search != "" {
				entries, err = store.SearchDedupHistory(args[0], search, limit)
			} else {
				entries, err = store.DedupHistory(args[0], limit)
			}
			if err != nil {
				return err
			}

			cols := []string{"id", "last_executed_at", "count", "sql"}
			rows := make([]map[string]any, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, map[string]any{
					"id":               e.ID,
					"last_executed_at": time.UnixMilli(e.LastExecutedAt).Format(time.RFC3339),
					"count":            e.ExecutionCount,
					"sql":              e.SQL,
				})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cfg.Output)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show")
	cmd.Flags().StringVar(&search, "search", "", "Filter deduplicated history by substring")
	cmd.Flags().BoolVar(&raw, "raw", false, "Show the full chronological log")

	cmd.AddCommand(newHistoryClearCommand())
	return cmd
}

func newHistoryClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <server-id>",
		Short: "Clear the deduplicated history for a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if err := eng.Store().ClearDedupHistory(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}
}
