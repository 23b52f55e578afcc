package pgclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReadStatement(t *testing.T) {
	reads := []string{
		"SELECT 1",
		"select * from t",
		"WITH x AS (SELECT 1) SELECT * FROM x",
		"TABLE users",
		"VALUES (1), (2)",
		"SHOW search_path",
		"EXPLAIN SELECT 1",
		"-- leading comment\nSELECT 1",
		"/* hint */ select 1",
	}
	for _, sql := range reads {
		assert.True(t, IsReadStatement(sql), "expected read: %q", sql)
	}

	writes := []string{
		"INSERT INTO t VALUES (1)",
		"UPDATE t SET a = 1",
		"DELETE FROM t",
		"CREATE TABLE t (id int)",
		"DROP TABLE t",
		"VACUUM",
		"SET search_path TO public",
		"-- comment only",
		"",
	}
	for _, sql := range writes {
		assert.False(t, IsReadStatement(sql), "expected command: %q", sql)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdentifier("users"))
	assert.Equal(t, `"we""ird"`, QuoteIdentifier(`we"ird`))
	assert.Equal(t, `"Mixed Case"`, QuoteIdentifier("Mixed Case"))
}
