// Package main is the entry point for the backupctl CLI.
package main

import (
	"os"

	"baydelivery/cmd/backupctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
