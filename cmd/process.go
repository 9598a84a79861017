package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	processOutput     string
	processThumbnails string
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Process a single photo file",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "write the JSON record to this file instead of stdout")
	processCmd.Flags().StringVarP(&processThumbnails, "thumbnails", "t", "", "thumbnail output root (omit to skip thumbnails)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	path := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, cleanup := buildPipeline()
	defer cleanup()

	rec := p.ProcessPhoto(ctx, path, filepath.Base(path), processThumbnails)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	data = append(data, '\n')

	if processOutput == "" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(processOutput, data, 0o644)
	}
	if err != nil {
		return err
	}

	if !rec.Success {
		return fmt.Errorf("processing failed: %s", rec.Error)
	}
	return nil
}
