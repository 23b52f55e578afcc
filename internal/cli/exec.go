package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sqldeck/sqldeck/internal/engine"
)

func newExecCommand() *cobra.Command {
	var (
		schema   string
		database string
	)

	cmd := &cobra.Command{
		Use:   "exec <server-id> <sql>",
		Short: "Execute one SQL statement",
		Long: `Execute one SQL statement on a server. Ctrl+C sends an out-of-band
cancel request to the server instead of abandoning the connection.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			execID := uuid.New().String()

			// Translate an interrupt into a server-side cancel while the
			// statement is registered.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			go func() {
				<-ctx.Done()
				// Best effort: the execution may have finished already.
				_ = eng.CancelExecution(context.Background(), execID)
			}()

			res, err := eng.ExecuteQuery(ctx, engine.QueryRequest{
				ServerID:    args[0],
				SQL:         strings.Join(args[1:], " "),
				Schema:      schema,
				Database:    database,
				ExecutionID: execID,
			})
			if err != nil {
				return err
			}
			return renderResult(cmd.OutOrStdout(), res, cfg.Output)
		},
	}

	cmd.Flags().StringVarP(&schema, "schema", "s", "", "Scope execution to this schema")
	cmd.Flags().StringVarP(&database, "database", "d", "", "Override the server's default database")

	return cmd
}
