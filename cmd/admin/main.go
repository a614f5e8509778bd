// Command complaints-admin runs maintenance tasks against the complaints
// database without going through the HTTP API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "complaints-admin",
	Short: "Maintenance commands for the complaints service",
	Long: `complaints-admin works directly on the configured database.

It reads the same config.yaml (or CONFIG_PATH) and environment overrides as
the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default $CONFIG_PATH or ./config.yaml)")
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(cleanupLogsCmd)
}
