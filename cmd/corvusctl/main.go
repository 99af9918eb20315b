// Command corvusctl is an operator CLI for driving corvus-paas without a
// façade in front of it: it talks directly to the same SQLite file corvusd
// reads from, inserting project and deployment rows and reading back
// status. This mirrors how a real external façade would use the db
// package, just from a terminal instead of an HTTP handler.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dbPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "corvusctl",
		Short: "corvusctl drives corvus-paas deployments from the command line",
		Long: `corvusctl is an operator CLI for the corvus-paas orchestrator.
It writes project and deployment rows directly into the shared SQLite
database that corvusd polls, and reads back deployment status.`,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./corvus.db", "path to the corvus-paas SQLite database")

	rootCmd.AddCommand(newProjectCommand())
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newListCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
