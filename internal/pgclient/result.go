package pgclient

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Column describes one result column: its name and the declared wire type
// name (or "unknown" for types absent from the connection's type map).
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Result is the normalized outcome of one statement. Exactly one side is
// populated: row results carry Columns and Rows, command results carry
// RowsAffected. IsQuery tells the two apart.
type Result struct {
	Columns      []Column         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rowsAffected"`
	IsQuery      bool             `json:"isQuery"`
	Message      string           `json:"message,omitempty"`
}

// collectRows drains rows into the normalized result shape. The conn is
// only consulted for its OID-to-name type map.
func collectRows(conn *pgx.Conn, rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]Column, len(fds))
	for i, fd := range fds {
		cols[i] = Column{Name: fd.Name, Type: typeName(conn, fd.DataTypeOID)}
	}

	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		row := make(map[string]any, len(fds))
		for i, fd := range fds {
			row[fd.Name] = normalizeValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Result{Columns: cols, Rows: out, IsQuery: true}, nil
}

func typeName(conn *pgx.Conn, oid uint32) string {
	if conn != nil {
		if t, ok := conn.TypeMap().TypeForOID(oid); ok {
			return t.Name
		}
	}
	return "unknown"
}

// normalizeValue maps a decoded wire value onto the small set of shapes
// the callers render (JSON, tables). Types outside the supported set fall
// back to their text representation; the lossiness is deliberate.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, int16, int32, int64, float32, float64, string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		return normalizeValue(dv)
	default:
		return fmt.Sprint(v)
	}
}
