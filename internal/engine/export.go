package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sqldeck/sqldeck/internal/pgclient"
)

// ExportOptions controls what an export emits.
type ExportOptions struct {
	// IncludeData emits each table's rows as a COPY FROM stdin block
	// after its DDL, so the output replays through the script runner.
	IncludeData bool
}

// ExportSchema writes replayable SQL for every base table in the schema:
// CREATE TABLE statements, index definitions, and optionally the data.
func (e *Engine) ExportSchema(ctx context.Context, serverID, schemaName string, w io.Writer, opts ExportOptions) error {
	conn, srv, err := e.acquire(ctx, serverID, "")
	if err != nil {
		return err
	}
	defer conn.Release()

	tables, err := baseTables(ctx, conn.Conn(), schemaName)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return fmt.Errorf("schema %q has no tables on server %q", schemaName, srv.Name)
	}

	fmt.Fprintf(w, "-- Schema export: %s\n", schemaName)
	fmt.Fprintf(w, "CREATE SCHEMA IF NOT EXISTS %s;\n\n", pgclient.QuoteIdentifier(schemaName))

	for _, table := range tables {
		if err := exportTable(ctx, conn.Conn(), schemaName, table, w, opts); err != nil {
			return err
		}
	}
	return nil
}

// ExportTable writes replayable SQL for a single table.
func (e *Engine) ExportTable(ctx context.Context, serverID, schemaName, tableName string, w io.Writer, opts ExportOptions) error {
	conn, _, err := e.acquire(ctx, serverID, "")
	if err != nil {
		return err
	}
	defer conn.Release()

	return exportTable(ctx, conn.Conn(), schemaName, tableName, w, opts)
}

func baseTables(ctx context.Context, conn *pgx.Conn, schemaName string) ([]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func exportTable(ctx context.Context, conn *pgx.Conn, schemaName, tableName string, w io.Writer, opts ExportOptions) error {
	qualified := pgclient.QuoteIdentifier(schemaName) + "." + pgclient.QuoteIdentifier(tableName)

	ddl, err := tableDDL(ctx, conn, schemaName, tableName)
	if err != nil {
		return fmt.Errorf("table %s: %w", qualified, err)
	}
	fmt.Fprintf(w, "-- Table: %s\n%s\n", qualified, ddl)

	indexes, err := tableIndexDefs(ctx, conn, schemaName, tableName)
	if err != nil {
		return fmt.Errorf("table %s: %w", qualified, err)
	}
	for _, def := range indexes {
		fmt.Fprintf(w, "%s;\n", def)
	}
	fmt.Fprintln(w)

	if !opts.IncludeData {
		return nil
	}

	fmt.Fprintf(w, "COPY %s FROM stdin;\n", qualified)
	copySQL := fmt.Sprintf("COPY %s TO STDOUT", qualified)
	if _, err := conn.PgConn().CopyTo(ctx, w, copySQL); err != nil {
		return fmt.Errorf("copy out %s: %w", qualified, err)
	}
	fmt.Fprint(w, "\\.\n\n")
	return nil
}

// tableDDL reconstructs a CREATE TABLE statement from
// information_schema. Constraints other than NOT NULL and defaults are
// covered by the exported index definitions.
func tableDDL(ctx context.Context, conn *pgx.Conn, schemaName, tableName string) (string, error) {
	rows, err := conn.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES', column_default,
		       character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schemaName, tableName)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			name, dataType string
			nullable       bool
			colDefault     *string
			maxLen         *int32
		)
		if err := rows.Scan(&name, &dataType, &nullable, &colDefault, &maxLen); err != nil {
			return "", err
		}

		col := "    " + pgclient.QuoteIdentifier(name) + " " + dataType
		if maxLen != nil && strings.HasPrefix(dataType, "character") {
			col += fmt.Sprintf("(%d)", *maxLen)
		}
		if !nullable {
			col += " NOT NULL"
		}
		if colDefault != nil {
			col += " DEFAULT " + *colDefault
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("no columns found")
	}

	qualified := pgclient.QuoteIdentifier(schemaName) + "." + pgclient.QuoteIdentifier(tableName)
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", qualified, strings.Join(cols, ",\n")), nil
}

func tableIndexDefs(ctx context.Context, conn *pgx.Conn, schemaName, tableName string) ([]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT indexdef FROM pg_indexes
		WHERE schemaname = $1 AND tablename = $2
		ORDER BY indexname`, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []string
	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}
