package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sqldeck/sqldeck/internal/pgclient"
	"github.com/sqldeck/sqldeck/pkg/sqlsplit"
)

// ScriptRequest is one script file to run against a server.
type ScriptRequest struct {
	ServerID    string
	Path        string
	Database    string
	ExecutionID string
}

// ScriptSummary reports a completed script run.
type ScriptSummary struct {
	Name       string `json:"name"`
	Statements int    `json:"statements"`
	Message    string `json:"message"`
}

// ExecuteScript streams a script file through the statement splitter and
// runs it in source order on a single connection, relaying inline COPY
// data. It stops at the first failing statement.
func (e *Engine) ExecuteScript(ctx context.Context, req ScriptRequest) (*ScriptSummary, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer func() { _ = f.Close() }()

	conn, srv, err := e.acquire(ctx, req.ServerID, req.Database)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	if req.ExecutionID != "" {
		e.cancels.Register(req.ExecutionID, conn.Conn().PgConn())
		defer e.cancels.Unregister(req.ExecutionID)
	}

	name := filepath.Base(req.Path)
	e.log.Info("running script", "server", srv.Name, "script", name)

	res, err := pgclient.RunScript(ctx, conn.Conn(), f, e.log)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}

	_ = e.store.TouchServer(req.ServerID, nowMillis())

	return &ScriptSummary{
		Name:       name,
		Statements: res.Statements,
		Message:    fmt.Sprintf("Executed %s (%d statements)", name, res.Statements),
	}, nil
}

// ScriptFileInfo describes a script without executing it.
type ScriptFileInfo struct {
	Name       string `json:"name"`
	SizeBytes  int64  `json:"sizeBytes"`
	Statements int    `json:"statements"`
}

// ProbeScript scans a script file and counts its statements, draining
// inline COPY data sections as the splitter requires. Malformed scripts
// return the splitter's error.
func (e *Engine) ProbeScript(path string) (*ScriptFileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	split := sqlsplit.New(f)
	count := 0
	for {
		stmt, err := split.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("after statement %d: %w", count, err)
		}
		count++
		if sqlsplit.IsCopyFromStdin(stmt) {
			if _, err := io.Copy(io.Discard, split.CopyData()); err != nil {
				return nil, fmt.Errorf("after statement %d: %w", count, err)
			}
		}
	}

	return &ScriptFileInfo{
		Name:       filepath.Base(path),
		SizeBytes:  info.Size(),
		Statements: count,
	}, nil
}
