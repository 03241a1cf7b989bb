package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schemaTables = []string{
	"users",
	"entities",
	"memory_records",
	"module_progress",
	"round_state",
	"round_results",
	"review_skips",
}

func TestSchemaStatementsSQLite(t *testing.T) {
	statements := schemaStatements("sqlite3")
	require.Len(t, statements, len(schemaTables))

	for i, table := range schemaTables {
		assert.Contains(t, statements[i], "CREATE TABLE IF NOT EXISTS "+table)
	}

	joined := strings.Join(statements, "\n")
	assert.Contains(t, joined, "INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.NotContains(t, joined, "SERIAL")
}

func TestSchemaStatementsPostgres(t *testing.T) {
	statements := schemaStatements("postgres")
	require.Len(t, statements, len(schemaTables))

	for i, table := range schemaTables {
		assert.Contains(t, statements[i], "CREATE TABLE IF NOT EXISTS "+table)
	}

	joined := strings.Join(statements, "\n")

	// AUTOINCREMENT is a syntax error in postgres
	assert.NotContains(t, joined, "AUTOINCREMENT")
	assert.Contains(t, joined, "SERIAL PRIMARY KEY")
}
