package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sqldeck/sqldeck/internal/state"
)

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Browse the cached schema snapshot",
	}
	cmd.AddCommand(newSchemaListCommand())
	cmd.AddCommand(newSchemaTablesCommand())
	cmd.AddCommand(newSchemaColumnsCommand())
	return cmd
}

func newSchemaListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <server-id>",
		Short: "List cached schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			schemas, err := eng.Store().SchemasForServer(args[0])
			if err != nil {
				return err
			}

			cols := []string{"id", "name", "last_updated"}
			rows := make([]map[string]any, 0, len(schemas))
			for _, sc := range schemas {
				rows = append(rows, map[string]any{
					"id":           sc.ID,
					"name":         sc.Name,
					"last_updated": time.UnixMilli(sc.LastUpdated).Format(time.RFC3339),
				})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cfg.Output)
		},
	}
}

func newSchemaTablesCommand() *cobra.Command {
	var viewsOnly bool

	cmd := &cobra.Command{
		Use:   "tables <schema-id>",
		Short: "List cached tables of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			store := eng.Store()
			var tables []state.Table
			if viewsOnly {
				tables, err = store.ViewsForSchema(args[0])
			} else {
				tables, err = store.TablesForSchema(args[0])
			}
			if err != nil {
				return err
			}

			cols := []string{"id", "name", "type"}
			rows := make([]map[string]any, 0, len(tables))
			for _, t := range tables {
				rows = append(rows, map[string]any{"id": t.ID, "name": t.Name, "type": t.Type})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cfg.Output)
		},
	}

	cmd.Flags().BoolVar(&viewsOnly, "views", false, "Only list views")
	return cmd
}

func newSchemaColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <table-id>",
		Short: "List cached columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			columns, err := eng.Store().ColumnsForTable(args[0])
			if err != nil {
				return err
			}

			cols := []string{"name", "data_type", "nullable"}
			rows := make([]map[string]any, 0, len(columns))
			for _, c := range columns {
				rows = append(rows, map[string]any{
					"name": c.Name, "data_type": c.DataType, "nullable": c.Nullable,
				})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cfg.Output)
		},
	}
}
