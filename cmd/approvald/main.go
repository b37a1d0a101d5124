/**
 * @description
 * Entry point for the approval service. `serve` runs the HTTP API and the recurrence
 * scheduler; the remaining commands are operator tools sharing the same configuration.
 */
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:           "approvald",
		Short:         "Payment request approval service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding the optional .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(recurrenceCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
