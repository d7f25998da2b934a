package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command; subcommands do the actual work.
var rootCmd = &cobra.Command{
	Use:   "taskhive",
	Short: "Team task tracker API server",
	Long:  `taskhive is the backend for the team task tracker: auth, tasks, and department statistics.`,
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
