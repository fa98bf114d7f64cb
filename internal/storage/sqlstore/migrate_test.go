package sqlstore

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/pokersession/internal/storage/sqlstore/migrations"
)

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INT);\n", extractUpMigration(content))
	assert.Equal(t, "CREATE TABLE b (id INT);", extractUpMigration("CREATE TABLE b (id INT);"))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("\nCREATE TABLE a (id INT);\n\nCREATE INDEX i ON a (id);\n  ")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX i ON a (id)"}, stmts)
}

func TestEveryDialectShipsTheSameMigrations(t *testing.T) {
	sqlite, err := fs.ReadDir(migrations.FS, DialectSQLite.migrationRoot())
	require.NoError(t, err)
	mysql, err := fs.ReadDir(migrations.FS, DialectMySQL.migrationRoot())
	require.NoError(t, err)

	require.Equal(t, len(sqlite), len(mysql))
	for i := range sqlite {
		assert.Equal(t, sqlite[i].Name(), mysql[i].Name())
	}
}

func TestUpsertStatements(t *testing.T) {
	cols := []string{"id", "name"}

	assert.Equal(t,
		"INSERT INTO clubs (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		DialectSQLite.upsert("clubs", []string{"id"}, cols),
	)
	assert.Equal(t,
		"INSERT INTO clubs (id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name)",
		DialectMySQL.upsert("clubs", []string{"id"}, cols),
	)
}
