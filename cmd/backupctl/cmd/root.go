// Package cmd provides the CLI commands for backupctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"baydelivery/db"
)

var rootCmd = &cobra.Command{
	Use:   "backupctl",
	Short: "Export and restore the quoting database",
	Long: `backupctl exports the quoting database to a snapshot file and restores
from one. A restore is destructive: every table is cleared and rebuilt from the
snapshot inside a single transaction.

Examples:
  backupctl export -o backup.json
  backupctl export --upload
  backupctl restore backup.json`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() { _ = godotenv.Load() })

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(restoreCmd)
}

func connectStorage() (*db.Storage, func(), error) {
	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		return nil, nil, fmt.Errorf("POSTGRES_CONN env variable is not set")
	}
	conn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to db: %w", err)
	}
	return db.NewStorage(conn), func() { conn.Close() }, nil
}
