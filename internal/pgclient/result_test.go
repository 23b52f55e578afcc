package pgclient

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValue_PassThrough(t *testing.T) {
	assert.Nil(t, normalizeValue(nil))
	assert.Equal(t, int64(42), normalizeValue(int64(42)))
	assert.Equal(t, int32(7), normalizeValue(int32(7)))
	assert.Equal(t, 1.5, normalizeValue(1.5))
	assert.Equal(t, true, normalizeValue(true))
	assert.Equal(t, "text", normalizeValue("text"))
}

func TestNormalizeValue_Bytes(t *testing.T) {
	assert.Equal(t, "raw", normalizeValue([]byte("raw")))
}

func TestNormalizeValue_Time(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01T12:30:00Z", normalizeValue(ts))
}

func TestNormalizeValue_ValuerFallback(t *testing.T) {
	// Exotic wire types decode to their text representation.
	var n pgtype.Numeric
	require.NoError(t, n.Scan("123.45"))

	got := normalizeValue(n)
	assert.Equal(t, "123.45", got)
}

func TestNormalizeValue_UnknownType(t *testing.T) {
	type odd struct{ A int }
	assert.Equal(t, "{9}", normalizeValue(odd{A: 9}))
}
