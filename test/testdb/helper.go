package testdb

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vantage-intel/vantage/internal/adapters/database"
)

// Setup connects to the test database, applies migrations, and wipes all
// table contents so each test starts clean. Tests are skipped when
// TEST_DATABASE_URL is unset.
func Setup(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := database.NewFromConn(conn)

	if err := database.RunMigrations(db.Conn(), migrationsPath()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	truncate(t, db)

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}
	})

	return db
}

// migrationsPath resolves the migrations directory relative to this file,
// so tests work regardless of the package they run from.
func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func truncate(t *testing.T, db *database.DB) {
	t.Helper()

	_, err := db.DB().Exec(`
		TRUNCATE articles, alerts, impact_analysis, company_relationships,
		         companies, holdings, historical_precedents, agent_logs,
		         cache_metadata RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}
