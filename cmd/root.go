// Package cmd wires the photoingest command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"photoingest/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "photoingest",
	Short: "Photo ingestion pipeline",
	Long: "photoingest decodes standard, high-efficiency and camera RAW photo files\n" +
		"and produces normalized records: dimensions, capture metadata, perceptual\n" +
		"hashes, thumbnails and semantic embeddings.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine; the environment still applies.
		_ = godotenv.Load()
		return logging.Setup(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		logging.Sync()
		os.Exit(1)
	}
}
