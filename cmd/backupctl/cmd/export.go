package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"baydelivery/internal/vault"
)

var (
	exportOutput string
	exportUpload bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the database to a snapshot file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write the snapshot to this file (default stdout)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "also upload the snapshot to the vault and prune old ones")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, closeDB, err := connectStorage()
	if err != nil {
		return err
	}
	defer closeDB()

	snap, err := store.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if exportOutput != "" {
		if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", exportOutput, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s (%d quotes, %d requests, %d jobs, %d attachments)\n",
			exportOutput, len(snap.Quotes), len(snap.QuoteRequests), len(snap.Jobs), len(snap.Attachments))
	} else {
		cmd.OutOrStdout().Write(data)
		fmt.Fprintln(cmd.OutOrStdout())
	}

	if !exportUpload {
		return nil
	}

	keepCount, _ := strconv.Atoi(os.Getenv("VAULT_KEEP_COUNT"))
	v, err := vault.New(ctx, vault.Config{
		Bucket:    os.Getenv("VAULT_BUCKET"),
		Prefix:    os.Getenv("VAULT_PREFIX"),
		Region:    os.Getenv("VAULT_REGION"),
		Endpoint:  os.Getenv("VAULT_ENDPOINT"),
		KeepCount: keepCount,
	})
	if err != nil {
		return err
	}

	key, err := v.UploadBackup(ctx, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded as %s\n", key)

	pruned, err := v.PruneBackups(ctx)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if pruned > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d old snapshots\n", pruned)
	}
	return nil
}
