package migrations

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Run applies all pending migrations. The uniqueness constraints that back the
// one-request-per-quote and one-job-per-quote invariants live here, so they
// exist before the first write ever happens.
func Run() error {
	db, err := sql.Open("postgres", os.Getenv("POSTGRES_CONN"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	migrationDir := os.Getenv("MIGRATIONS_DIR")
	if migrationDir == "" {
		migrationDir = "./migrations"
	}

	if err := goose.Up(db, migrationDir); err != nil {
		return fmt.Errorf("run migrations from %s: %w", migrationDir, err)
	}
	return nil
}
