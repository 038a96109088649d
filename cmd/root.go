package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the citizone auth server CLI.
var rootCmd = &cobra.Command{
	Use:   "authserver",
	Short: "Citizone authentication backend",
	Long: `Citizone authentication backend. Verifies user identity via
email+password or phone+OTP and issues bearer session grants.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
