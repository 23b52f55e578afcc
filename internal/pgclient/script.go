package pgclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/sqldeck/sqldeck/pkg/sqlsplit"
)

// ScriptResult summarizes a completed script run.
type ScriptResult struct {
	Statements int
}

// RunScript splits the SQL stream r into statements and executes them on
// conn strictly in source order, relaying inline COPY data sections over
// the wire as they are encountered. Processing stops at the first failure;
// statements already executed are not rolled back.
func RunScript(ctx context.Context, conn *pgx.Conn, r io.Reader, logger *slog.Logger) (*ScriptResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	split := sqlsplit.New(r)
	res := &ScriptResult{}

	for {
		stmt, err := split.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("after statement %d: %w", res.Statements, err)
		}

		if sqlsplit.IsCopyFromStdin(stmt) {
			if err := relayCopy(ctx, conn, split, stmt); err != nil {
				return res, err
			}
			res.Statements++
			continue
		}

		logger.Debug("executing statement", "ordinal", res.Statements+1)
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return res, &StatementError{
				Ordinal: res.Statements + 1,
				Preview: preview(stmt),
				Diag:    diagnosticOf(err),
				Err:     err,
			}
		}
		res.Statements++
	}
}

// relayCopy opens the bulk-ingest channel for stmt and streams the inline
// data section into it. The channel is exclusively owned here until the
// sentinel line finalizes it.
func relayCopy(ctx context.Context, conn *pgx.Conn, split *sqlsplit.Splitter, stmt string) error {
	data := &trackingReader{r: split.CopyData()}

	if _, err := conn.PgConn().CopyFrom(ctx, data, stmt); err != nil {
		// Distinguish malformed input (our side) from a server rejection.
		if data.err != nil && errors.Is(data.err, sqlsplit.ErrMalformed) {
			return data.err
		}
		return &CopyError{Diag: diagnosticOf(err), Err: err}
	}
	return nil
}

// trackingReader remembers the first error produced by the wrapped reader
// so it can be told apart from errors raised by the wire protocol.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
