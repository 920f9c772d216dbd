package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fenilmodi00/valuation-backend/shared"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var DB *sql.DB

//go:embed schema.sql
var embeddedSchema string

// RequiredTables are created by schema.sql and checked by ValidateSchema.
var RequiredTables = []string{"universes", "portfolios", "valuation_runs"}

// Connect establishes the database connection with default pool settings
func Connect(dbURL string) error {
	config := shared.NewDefaultUnifiedConfiguration().Database
	return ConnectWithConfig(dbURL, &config)
}

// ConnectWithConfig establishes the database connection with custom pool settings
func ConnectWithConfig(dbURL string, config *shared.DatabaseConfig) error {
	if dbURL == "" {
		return shared.NewServiceError(shared.ErrorCategoryConfiguration, "DATABASE_URL_MISSING",
			"DATABASE_URL is not set", "database", "Connect", false, nil)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.PingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return shared.NewServiceError(shared.ErrorCategoryDatabase, "DATABASE_UNREACHABLE",
			"failed to ping database", "database", "Connect", true, err)
	}
	DB = db

	logrus.WithFields(logrus.Fields{
		"max_open_conns":     config.MaxOpenConns,
		"max_idle_conns":     config.MaxIdleConns,
		"conn_max_lifetime":  config.ConnMaxLifetime,
		"conn_max_idle_time": config.ConnMaxIdleTime,
	}).Info("Connected to database successfully")

	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
		logrus.Info("Database connection closed")
	}
}

// GetConnectionStats returns current database connection pool statistics
func GetConnectionStats() sql.DBStats {
	if DB == nil {
		return sql.DBStats{}
	}
	return DB.Stats()
}

const healthCheckTimeout = 5 * time.Second

// HealthCheck pings the database and logs pool statistics.
func HealthCheck() error {
	if DB == nil {
		return errNotConnected("HealthCheck")
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return shared.NewServiceError(shared.ErrorCategoryDatabase, "DATABASE_UNREACHABLE",
			"database ping failed", "database", "HealthCheck", true, err)
	}

	stats := DB.Stats()
	logrus.WithFields(logrus.Fields{
		"component":        "database",
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
	}).Debug("Database health check passed")

	return nil
}

// Migrate applies the schema at schemaPath, or the built-in schema when the
// path is empty, in a single transaction. Every statement in the built-in
// schema is idempotent, so Migrate runs on each start.
func Migrate(schemaPath string) error {
	if DB == nil {
		return errNotConnected("Migrate")
	}

	content := embeddedSchema
	if schemaPath != "" {
		raw, err := os.ReadFile(schemaPath)
		if err != nil {
			return shared.WrapError(err, shared.ErrorCategoryConfiguration, "SCHEMA_UNREADABLE", "database", "Migrate", false)
		}
		content = string(raw)
	}
	statements := parseSQLStatements(content)

	tx, err := DB.Begin()
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "MIGRATION_FAILED", "database", "Migrate", true)
	}
	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return shared.NewServiceError(shared.ErrorCategoryDatabase, "MIGRATION_FAILED",
				fmt.Sprintf("schema statement %d of %d failed", i+1, len(statements)), "database", "Migrate", false, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "MIGRATION_FAILED", "database", "Migrate", true)
	}

	logrus.WithFields(logrus.Fields{
		"component":  "database",
		"statements": len(statements),
	}).Info("Database schema is up to date")
	return nil
}

// ValidateSchema reports which RequiredTables are missing.
func ValidateSchema(ctx context.Context, db *sql.DB) ([]string, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`

	var missing []string
	for _, table := range RequiredTables {
		var exists bool
		if err := db.QueryRowContext(ctx, query, table).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}

	if len(missing) > 0 {
		logrus.WithField("missing_tables", missing).Warn("Schema validation found missing tables")
	}
	return missing, nil
}

func errNotConnected(operation string) error {
	return shared.NewServiceError(shared.ErrorCategoryConfiguration, "DATABASE_NOT_CONNECTED",
		"database connection not established", "database", operation, false, nil)
}

// parseSQLStatements splits a schema file on semicolons. Comments are
// dropped and each statement is collapsed onto one line. The schema has no
// string literals containing ';' or '--'.
func parseSQLStatements(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(lines, " "), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
