package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskhive/apiserver/config"
	"github.com/taskhive/apiserver/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the taskhive backend server",
	Long: `Starts the taskhive backend server. Usage:

	taskhive server
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		srv, err := server.New(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = srv.Shutdown()
		}()
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
