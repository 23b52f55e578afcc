package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sqldeck/sqldeck/internal/engine"
)

func newRunCommand() *cobra.Command {
	var (
		database string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "run <server-id> <script.sql>",
		Short: "Run a SQL script file",
		Long: `Run a multi-statement SQL script against a server. Statements execute
in source order on a single connection; inline COPY ... FROM STDIN data
sections are relayed to the server as they are encountered. Execution
stops at the first failing statement.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if dryRun {
				info, err := eng.ProbeScript(args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d statements, %d bytes\n",
					info.Name, info.Statements, info.SizeBytes)
				return nil
			}

			execID := uuid.New().String()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			go func() {
				<-ctx.Done()
				_ = eng.CancelExecution(context.Background(), execID)
			}()

			summary, err := eng.ExecuteScript(ctx, engine.ScriptRequest{
				ServerID:    args[0],
				Path:        args[1],
				Database:    database,
				ExecutionID: execID,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), summary.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "Override the server's default database")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and count statements without executing")

	return cmd
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [server-id]",
		Short: "Refresh the cached schema snapshot",
		Long: `Refresh the cached schema snapshot for one server, or for every
registered server when no id is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if len(args) == 0 {
				if err := eng.RefreshAllSchemas(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Refreshed all servers")
				return nil
			}

			if err := eng.RefreshSchema(cmd.Context(), args[0]); err != nil {
				return err
			}

			schemas, err := eng.Store().SchemasForServer(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d schemas\n", len(schemas))
			return nil
		},
	}
}
