package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"photoingest/logging"
	"photoingest/types"
)

// defaultWorkers bounds decode concurrency. Decodes are memory-heavy, so
// the pool is capped below the CPU count on large machines.
func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	return n
}

// Workers returns the pool size used for batch processing.
func (p *Pipeline) Workers() int {
	return p.workers
}

// ProcessPhoto processes a single file into a record. A panic inside the
// processing chain is recovered into a failed record so one corrupt file
// can never take down a batch.
func (p *Pipeline) ProcessPhoto(ctx context.Context, filePath, relPath, thumbnailRoot string) (rec types.PhotoRecord) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("panic while processing %s: %v", filePath, r)
			// The in-flight record is lost with the stack; rebuild the
			// identifying header so the failure is attributable.
			rec = types.PhotoRecord{
				Path:  filepath.ToSlash(relPath),
				Name:  filepath.Base(filePath),
				Error: fmt.Sprintf("internal error while processing: %v", r),
			}
		}
	}()
	return p.process(ctx, filePath, relPath, thumbnailRoot)
}

// ProcessBatch processes the files concurrently and returns one record per
// input, with results[i] corresponding to filePaths[i] regardless of
// completion order. relativePaths must be parallel to filePaths.
func (p *Pipeline) ProcessBatch(ctx context.Context, filePaths, relativePaths []string, thumbnailRoot string) []types.PhotoRecord {
	return p.ProcessBatchWithCallback(ctx, filePaths, relativePaths, thumbnailRoot, nil)
}

// ProcessBatchWithCallback is ProcessBatch with a per-item completion hook
// (progress reporting). The callback may run from any worker goroutine but
// is never invoked concurrently.
func (p *Pipeline) ProcessBatchWithCallback(ctx context.Context, filePaths, relativePaths []string, thumbnailRoot string, done func(i int, rec types.PhotoRecord)) []types.PhotoRecord {
	results := make([]types.PhotoRecord, len(filePaths))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	var cbMu sync.Mutex

	for i := range filePaths {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = p.ProcessPhoto(ctx, filePaths[i], relativePaths[i], thumbnailRoot)

			if done != nil {
				cbMu.Lock()
				done(i, results[i])
				cbMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	return results
}
