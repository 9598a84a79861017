package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"photoingest/config"
	"photoingest/embedding"
	"photoingest/exif"
	"photoingest/formats"
	"photoingest/logging"
	"photoingest/pipeline"
	"photoingest/types"
)

var (
	ingestOutput     string
	ingestThumbnails string
	ingestQuiet      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <directory>",
	Short: "Process every supported photo under a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestOutput, "output", "o", "", "write JSON records to this file instead of stdout")
	ingestCmd.Flags().StringVarP(&ingestThumbnails, "thumbnails", "t", "", "thumbnail output root (omit to skip thumbnails)")
	ingestCmd.Flags().BoolVarP(&ingestQuiet, "quiet", "q", false, "suppress the progress bar")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	root := args[0]

	files, rels, err := discover(root)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported photo files found under %s", root)
	}
	logging.Infof("discovered %d photo files under %s", len(files), root)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, cleanup := buildPipeline()
	defer cleanup()

	var bar *progressbar.ProgressBar
	if !ingestQuiet {
		bar = progressbar.Default(int64(len(files)), "processing")
	}

	results := p.ProcessBatchWithCallback(ctx, files, rels, ingestThumbnails, func(i int, rec types.PhotoRecord) {
		if bar != nil {
			_ = bar.Add(1)
		}
		if !rec.Success {
			logging.Warnf("failed to process %s: %s", rec.Path, rec.Error)
		}
	})

	ok := 0
	for _, rec := range results {
		if rec.Success {
			ok++
		}
	}
	logging.Infof("processed %d files: %d succeeded, %d failed", len(results), ok, len(results)-ok)

	return writeRecords(results, ingestOutput)
}

// discover walks the root and returns parallel slices of absolute and
// root-relative paths for every supported photo file, in lexical order.
func discover(root string) (files, rels []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !formats.IsSupported(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, path)
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, rels, nil
}

// buildPipeline assembles the pipeline from the runtime configuration.
// The returned cleanup stops the exiftool sidecar.
func buildPipeline() (*pipeline.Pipeline, func()) {
	cfg := config.Load()

	var metadata pipeline.MetadataExtractor
	cleanup := func() {}
	if ex, err := exif.NewExtractor(); err != nil {
		logging.Warnf("exiftool unavailable, capture metadata will be skipped: %v", err)
	} else {
		metadata = ex
		cleanup = func() { _ = ex.Close() }
	}

	emb := embedding.NewService(cfg.Embedding)
	if !emb.Enabled() {
		logging.Infof("no embedding server configured, embeddings will be skipped")
	}

	return pipeline.New(cfg, metadata, emb), cleanup
}

func writeRecords(records []types.PhotoRecord, path string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Infof("wrote %d records to %s", len(records), path)
	return nil
}
