package pgclient

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticOf(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:     "23505",
		Message:  "duplicate key value violates unique constraint",
		Detail:   "Key (id)=(1) already exists.",
		Hint:     "use upsert",
		Where:    "COPY t, line 3",
		Position: 12,
	}
	wrapped := fmt.Errorf("exec failed: %w", pgErr)

	d := diagnosticOf(wrapped)
	require.NotNil(t, d)
	assert.Equal(t, "23505", d.Code)
	assert.Equal(t, int32(12), d.Position)
	assert.Contains(t, d.String(), "23505: duplicate key")
	assert.Contains(t, d.String(), "Detail: Key (id)=(1) already exists.")
	assert.Contains(t, d.String(), "Hint: use upsert")
	assert.Contains(t, d.String(), "Where: COPY t, line 3")
}

func TestDiagnosticOf_NonServerError(t *testing.T) {
	assert.Nil(t, diagnosticOf(errors.New("dial tcp: refused")))
}

func TestStatementError_CarriesContext(t *testing.T) {
	cause := errors.New("syntax error")
	err := &StatementError{
		Ordinal: 7,
		Preview: "SELECT oops",
		Err:     cause,
	}

	assert.Contains(t, err.Error(), "statement 7 failed")
	assert.Contains(t, err.Error(), "SELECT oops")
	assert.ErrorIs(t, err, cause)
}

func TestPreview_Bounded(t *testing.T) {
	long := strings.Repeat("x", previewLimit+100)
	assert.Len(t, preview(long), previewLimit)
	assert.Equal(t, "short", preview("short"))
}

func TestCopyError_PrefersDiagnostic(t *testing.T) {
	err := &CopyError{
		Diag: &Diagnostic{Code: "22P04", Message: "bad copy data"},
		Err:  errors.New("underlying"),
	}
	assert.Contains(t, err.Error(), "22P04: bad copy data")
}
