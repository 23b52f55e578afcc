package pgclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sqldeck/sqldeck/pkg/sqlsplit"
)

// readKeywords are the leading keywords of statements executed as queries:
// selection, common-table-expression, introspection, and plan-explain
// forms. Everything else executes as a command.
var readKeywords = map[string]struct{}{
	"select":  {},
	"with":    {},
	"table":   {},
	"values":  {},
	"show":    {},
	"explain": {},
}

// IsReadStatement classifies a statement by its leading keyword after
// stripping leading comments.
func IsReadStatement(sql string) bool {
	_, ok := readKeywords[sqlsplit.LeadingKeyword(sql)]
	return ok
}

// querier is the common query surface of *pgx.Conn and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Execute runs one trimmed statement on conn and normalizes the result.
// When schema is non-empty, execution is wrapped in a transaction whose
// search path is set to that schema only, scoped to the transaction.
func Execute(ctx context.Context, conn *pgx.Conn, sql, schema string) (*Result, error) {
	if schema == "" {
		return dispatch(ctx, conn, conn, sql)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin schema-scoped transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	setPath := fmt.Sprintf("SET LOCAL search_path TO %s", QuoteIdentifier(schema))
	if _, err := tx.Exec(ctx, setPath); err != nil {
		return nil, fmt.Errorf("set search path to %q: %w", schema, err)
	}

	res, err := dispatch(ctx, conn, tx, sql)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit schema-scoped transaction: %w", err)
	}
	return res, nil
}

func dispatch(ctx context.Context, conn *pgx.Conn, q querier, sql string) (*Result, error) {
	if IsReadStatement(sql) {
		rows, err := q.Query(ctx, sql)
		if err != nil {
			return nil, err
		}
		return collectRows(conn, rows)
	}

	tag, err := q.Exec(ctx, sql)
	if err != nil {
		return nil, err
	}
	return &Result{RowsAffected: tag.RowsAffected()}, nil
}

// QuoteIdentifier quotes a SQL identifier, doubling embedded quotes.
func QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
