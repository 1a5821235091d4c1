package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"baydelivery/db"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot-file>",
	Short: "Restore the database from a snapshot file",
	Long: `Restore clears every table and rebuilds it from the snapshot in a single
transaction. On any error the database is left exactly as it was.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	var snap db.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, closeDB, err := connectStorage()
	if err != nil {
		return err
	}
	defer closeDB()

	counts, err := store.ImportAll(ctx, &snap)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Restored %d quotes, %d requests, %d jobs, %d attachments\n",
		counts.Quotes, counts.QuoteRequests, counts.Jobs, counts.Attachments)
	return nil
}
