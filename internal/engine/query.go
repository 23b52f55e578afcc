package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqldeck/sqldeck/internal/pgclient"
	"github.com/sqldeck/sqldeck/pkg/sqlsplit"
)

// QueryRequest is one statement to execute.
type QueryRequest struct {
	ServerID string
	SQL      string

	// Schema, when non-empty, scopes execution to that schema via a
	// transaction-local search path.
	Schema string

	// Database, when non-empty, targets a database other than the
	// server's default.
	Database string

	// ExecutionID, when non-empty, registers the statement for
	// out-of-band cancellation while it runs.
	ExecutionID string
}

// ExecuteQuery runs one statement against a server. Successful runs are
// recorded in history, and statements that change the catalog trigger a
// schema refresh plus a broadcast to listeners.
func (e *Engine) ExecuteQuery(ctx context.Context, req QueryRequest) (*pgclient.Result, error) {
	sqlText := strings.TrimSpace(req.SQL)
	if sqlText == "" {
		return nil, fmt.Errorf("empty statement")
	}

	conn, srv, err := e.acquire(ctx, req.ServerID, req.Database)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	if req.ExecutionID != "" {
		e.cancels.Register(req.ExecutionID, conn.Conn().PgConn())
		defer e.cancels.Unregister(req.ExecutionID)
	}

	res, execErr := pgclient.Execute(ctx, conn.Conn(), sqlText, req.Schema)

	if histErr := e.store.AddHistory(req.ServerID, sqlText, nowMillis(), execErr == nil); histErr != nil {
		e.log.Warn("history write failed", "server_id", req.ServerID, "error", histErr)
	}

	if execErr != nil {
		return nil, execErr
	}

	_ = e.store.TouchServer(req.ServerID, nowMillis())

	if IsSchemaMutation(sqlText) {
		// Refresh on a fresh connection after the statement committed.
		if err := e.RefreshSchema(ctx, req.ServerID); err != nil {
			e.log.Warn("schema refresh after mutation failed",
				"server_id", req.ServerID, "error", err)
		}
	}

	if !res.IsQuery && res.Message == "" {
		res.Message = fmt.Sprintf("OK, %d rows affected", res.RowsAffected)
	}
	e.log.Debug("statement executed",
		"server", srv.Name, "is_query", res.IsQuery, "rows", len(res.Rows))
	return res, nil
}

// CancelExecution sends an out-of-band cancel for a registered
// execution id.
func (e *Engine) CancelExecution(ctx context.Context, executionID string) error {
	return e.cancels.Cancel(ctx, executionID)
}

// mutationKeywords lead statements that can change the catalog.
var mutationKeywords = map[string]struct{}{
	"create":   {},
	"alter":    {},
	"drop":     {},
	"truncate": {},
	"comment":  {},
	"grant":    {},
	"revoke":   {},
}

// IsSchemaMutation reports whether the statement's leading keyword can
// change schema objects, meaning the cached snapshot is stale after it.
func IsSchemaMutation(sql string) bool {
	_, ok := mutationKeywords[sqlsplit.LeadingKeyword(sql)]
	return ok
}
