// Package main is the entry point for the agentboard binary: the server and
// a small client for driving it from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

var rootCmd = &cobra.Command{
	Use:   "agentboard",
	Short: "Run a board of tasks through the Claude CLI",
	Long: `agentboard executes the tasks of a project one after another through the
Claude CLI, streams progress to the caller and records every outcome.

'agentboard serve' starts the HTTP server; the other commands talk to it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("server", envOr("AGENTBOARD_SERVER", defaultServerURL), "agentboard server URL")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newSheetCmd())
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func serverURL(cmd *cobra.Command) string {
	url, _ := cmd.Flags().GetString("server")
	if url == "" {
		return defaultServerURL
	}
	return url
}
