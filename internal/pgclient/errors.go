// Package pgclient manages PostgreSQL connections and statement execution
// for sqldeck: per-server connection pools, read/write dispatch, streaming
// script execution with inline COPY relay, and out-of-band cancellation.
package pgclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConnect marks failures to reach or authenticate to a server. The
// whole file execution aborts on it.
var ErrConnect = errors.New("connection failure")

// previewLimit bounds the statement preview attached to failures.
const previewLimit = 500

// Diagnostic carries the server's structured error fields when available.
type Diagnostic struct {
	Code     string
	Message  string
	Detail   string
	Hint     string
	Where    string
	Position int32
}

func (d *Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", d.Code, d.Message)
	if d.Detail != "" {
		fmt.Fprintf(&b, "\nDetail: %s", d.Detail)
	}
	if d.Hint != "" {
		fmt.Fprintf(&b, "\nHint: %s", d.Hint)
	}
	if d.Where != "" {
		fmt.Fprintf(&b, "\nWhere: %s", d.Where)
	}
	return b.String()
}

// diagnosticOf extracts the server diagnostic from err, or nil when the
// error did not originate from the server.
func diagnosticOf(err error) *Diagnostic {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	return &Diagnostic{
		Code:     pgErr.Code,
		Message:  pgErr.Message,
		Detail:   pgErr.Detail,
		Hint:     pgErr.Hint,
		Where:    pgErr.Where,
		Position: pgErr.Position,
	}
}

// StatementError reports the failure of one statement with enough context
// to locate it in the source: its 1-based ordinal among executed
// statements and a bounded preview of its text.
type StatementError struct {
	Ordinal int
	Preview string
	Diag    *Diagnostic
	Err     error
}

func (e *StatementError) Error() string {
	msg := e.Err.Error()
	if e.Diag != nil {
		msg = e.Diag.String()
	}
	return fmt.Sprintf("statement %d failed: %s\nStatement preview:\n%s", e.Ordinal, msg, e.Preview)
}

func (e *StatementError) Unwrap() error { return e.Err }

// CopyError reports a server-side failure while relaying inline COPY data.
// The copy channel is abandoned; the file execution stops.
type CopyError struct {
	Diag *Diagnostic
	Err  error
}

func (e *CopyError) Error() string {
	if e.Diag != nil {
		return fmt.Sprintf("copy failed: %s", e.Diag.String())
	}
	return fmt.Sprintf("copy failed: %s", e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// preview returns the first previewLimit characters of sql.
func preview(sql string) string {
	runes := []rune(sql)
	if len(runes) <= previewLimit {
		return sql
	}
	return string(runes[:previewLimit])
}
