package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSQLStatements(t *testing.T) {
	content := `
-- leading comment
CREATE TABLE a (
    id INT
);

CREATE INDEX i ON a (id); -- trailing comment
SELECT 1`

	statements := parseSQLStatements(content)
	require.Len(t, statements, 3)
	assert.Equal(t, "CREATE TABLE a ( id INT )", statements[0])
	assert.Equal(t, "CREATE INDEX i ON a (id)", statements[1])
	assert.Equal(t, "SELECT 1", statements[2])
}

func TestEmbeddedSchemaCreatesRequiredTables(t *testing.T) {
	statements := parseSQLStatements(embeddedSchema)
	for _, table := range RequiredTables {
		found := false
		for _, stmt := range statements {
			if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" ") {
				found = true
				break
			}
		}
		assert.True(t, found, "schema should create %s", table)
	}
}

func TestValidateSchemaReportsMissingTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := "SELECT EXISTS"
	mock.ExpectQuery(query).WithArgs("universes").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(query).WithArgs("portfolios").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(query).WithArgs("valuation_runs").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	missing, err := ValidateSchema(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"portfolios"}, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	prev := DB
	DB = db
	defer func() { DB = prev }()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS universes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_universes_created_at").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = Migrate("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema statement 2 of")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCommitsEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	prev := DB
	DB = db
	defer func() { DB = prev }()

	mock.ExpectBegin()
	for range parseSQLStatements(embeddedSchema) {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, Migrate(""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectRequiresURL(t *testing.T) {
	err := Connect("")
	require.Error(t, err)
	assert.Nil(t, DB)
}
