package cmd

import (
	"fmt"
	"os"

	"github.com/citizone/authserver/config"
	"github.com/citizone/authserver/internal/server"
	"github.com/spf13/cobra"
)

// serverCmd starts the HTTP API.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication API server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		srv, err := server.New(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
			os.Exit(1)
		}
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
