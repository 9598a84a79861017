package pipeline

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"photoingest/rawproc"
	"photoingest/types"
)

type fakeHasher struct{}

func (fakeHasher) Perceptual(*image.NRGBA) (string, error) { return "feedface01234567", nil }
func (fakeHasher) Average(*image.NRGBA) (string, error)    { return "89abcdef01234567", nil }

type fakeRaw struct {
	result *rawproc.Result
	err    error
}

func (f *fakeRaw) Convert(path, format string) (*rawproc.Result, error) {
	return f.result, f.err
}

type fakeMetadata struct {
	md  *types.CaptureMetadata
	err error
}

func (f *fakeMetadata) Extract(path string) (*types.CaptureMetadata, error) {
	return f.md, f.err
}

type fakeEmbedder struct {
	enabled bool
	dim     int
	vec     []float32
	err     error
	gotLen  int
	got     []byte
}

func (f *fakeEmbedder) Enabled() bool { return f.enabled }
func (f *fakeEmbedder) Dim() int      { return f.dim }

func (f *fakeEmbedder) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	f.gotLen = len(images)
	if len(images) > 0 {
		f.got = images[0]
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(images))
	for i := range out {
		out[i] = f.vec
	}
	return out, nil
}

func newTestPipeline() *Pipeline {
	return &Pipeline{
		hasher:  fakeHasher{},
		workers: 4,
	}
}

func writeJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchIsolatesUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeJPEG(t, dir, "a.jpg", 40, 30),
		writeFile(t, dir, "notes.txt", "not a photo"),
		writeJPEG(t, dir, "b.jpg", 30, 40),
	}
	rels := []string{"a.jpg", "notes.txt", "b.jpg"}

	p := newTestPipeline()
	results := p.ProcessBatch(context.Background(), files, rels, "")

	if len(results) != 3 {
		t.Fatalf("got %d records; want 3", len(results))
	}
	if !results[0].Success || !results[2].Success {
		t.Errorf("supported files must succeed: %+v / %+v", results[0], results[2])
	}

	bad := results[1]
	if bad.Success {
		t.Error("unsupported file must not succeed")
	}
	if bad.Error != "Unsupported file type" {
		t.Errorf("error = %q; want %q", bad.Error, "Unsupported file type")
	}
	if bad.Size == 0 || bad.ModifiedAt == 0 {
		t.Error("size and timestamps must be populated for unsupported files")
	}
	if bad.HasDimensions() {
		t.Error("unsupported file must not carry dimensions")
	}
}

func TestBatchPreservesInputOrder(t *testing.T) {
	dir := t.TempDir()
	var files, rels []string
	for _, name := range []string{"e.jpg", "a.jpg", "d.jpg", "c.jpg", "b.jpg"} {
		files = append(files, writeJPEG(t, dir, name, 20, 20))
		rels = append(rels, name)
	}

	p := newTestPipeline()
	p.workers = 3
	results := p.ProcessBatch(context.Background(), files, rels, "")

	for i, rec := range results {
		if rec.Path != rels[i] {
			t.Errorf("results[%d].Path = %q; want %q", i, rec.Path, rels[i])
		}
	}
}

// blockingHasher tracks how many hash calls run at once.
type blockingHasher struct {
	current int32
	max     int32
}

func (b *blockingHasher) Perceptual(*image.NRGBA) (string, error) {
	cur := atomic.AddInt32(&b.current, 1)
	for {
		max := atomic.LoadInt32(&b.max)
		if cur <= max || atomic.CompareAndSwapInt32(&b.max, max, cur) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	atomic.AddInt32(&b.current, -1)
	return "00", nil
}

func (b *blockingHasher) Average(*image.NRGBA) (string, error) { return "00", nil }

func TestBatchRespectsWorkerBound(t *testing.T) {
	dir := t.TempDir()
	var files, rels []string
	for i := 0; i < 12; i++ {
		name := string(rune('a'+i)) + ".jpg"
		files = append(files, writeJPEG(t, dir, name, 16, 16))
		rels = append(rels, name)
	}

	h := &blockingHasher{}
	p := &Pipeline{hasher: h, workers: 2}
	p.ProcessBatch(context.Background(), files, rels, "")

	if got := atomic.LoadInt32(&h.max); got > 2 {
		t.Errorf("observed %d concurrent items; pool bound is 2", got)
	}
}

func TestRawConversionSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shot.cr3", "raw container bytes")

	raster := image.NewNRGBA(image.Rect(0, 0, 120, 80))
	p := newTestPipeline()
	p.raw = &fakeRaw{result: &rawproc.Result{
		Raster:           raster,
		PreviewJPEG:      []byte("preview"),
		HistogramMatched: true,
		ProcessingTimeMs: 42,
	}}

	rec := p.ProcessPhoto(context.Background(), path, "shot.cr3", "")
	if !rec.Success {
		t.Fatalf("conversion must succeed, got error %q", rec.Error)
	}
	if !rec.IsRaw || rec.RawFormat != "CR3" {
		t.Errorf("raw classification lost: IsRaw=%v RawFormat=%q", rec.IsRaw, rec.RawFormat)
	}
	if rec.RawStatus != types.RawStatusConverted {
		t.Errorf("raw_status = %q; want %q", rec.RawStatus, types.RawStatusConverted)
	}
	if !rec.HistogramMatched {
		t.Error("histogram_matched must be carried through")
	}
	if rec.ProcessingTimeMs != 42 {
		t.Errorf("processing_time_ms = %d; want 42", rec.ProcessingTimeMs)
	}
	if !rec.HasDimensions() || *rec.Width != 120 || *rec.Height != 80 {
		t.Errorf("dimensions = %v x %v; want 120 x 80", rec.Width, rec.Height)
	}
	if rec.MimeType != "image/x-cr3" {
		t.Errorf("mime_type = %q; want image/x-cr3", rec.MimeType)
	}
	if rec.PHash == "" {
		t.Error("phash must be computed for converted RAW files")
	}
}

func TestRawConversionFailurePreservesPartialData(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.nef", "truncated")

	p := newTestPipeline()
	p.raw = &fakeRaw{err: &rawproc.DecodeError{
		Stage: rawproc.StageUnpack, Path: path, Err: errors.New("dcraw exit 1"),
	}}

	rec := p.ProcessPhoto(context.Background(), path, "broken.nef", "")
	if rec.Success {
		t.Fatal("failed conversion must not succeed")
	}
	if rec.RawStatus != types.RawStatusFailed {
		t.Errorf("raw_status = %q; want %q", rec.RawStatus, types.RawStatusFailed)
	}
	if rec.RawError == "" || rec.Error == "" {
		t.Error("failure reason must be recorded")
	}
	if rec.Size == 0 {
		t.Error("file size gathered before the failure must be preserved")
	}
	if rec.HasDimensions() {
		t.Error("failed decode must not carry dimensions")
	}
}

func TestOrientationSwapsRecordedDimensions(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "rot.jpg", 100, 60)

	p := newTestPipeline()
	p.metadata = &fakeMetadata{md: &types.CaptureMetadata{Orientation: 6}}

	rec := p.ProcessPhoto(context.Background(), path, "rot.jpg", "")
	if !rec.Success {
		t.Fatalf("processing failed: %s", rec.Error)
	}
	if *rec.Width != 60 || *rec.Height != 100 {
		t.Errorf("oriented dimensions = %dx%d; want 60x100", *rec.Width, *rec.Height)
	}
}

func TestMetadataFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "x.jpg", 20, 20)

	p := newTestPipeline()
	p.metadata = &fakeMetadata{err: errors.New("exiftool crashed")}

	rec := p.ProcessPhoto(context.Background(), path, "x.jpg", "")
	if !rec.Success {
		t.Fatalf("metadata failure must not fail the item: %s", rec.Error)
	}
	if rec.Exif != nil {
		t.Error("no metadata expected after extraction failure")
	}
}

func TestEmbeddingPrefersPreviewBytes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shot.arw", "raw")

	preview := []byte("camera rendered jpeg")
	emb := &fakeEmbedder{enabled: true, dim: 4, vec: []float32{1, 2, 3, 4}}
	p := newTestPipeline()
	p.embedder = emb
	p.raw = &fakeRaw{result: &rawproc.Result{
		Raster:      image.NewNRGBA(image.Rect(0, 0, 10, 10)),
		PreviewJPEG: preview,
	}}

	rec := p.ProcessPhoto(context.Background(), path, "shot.arw", "")
	if !rec.Success {
		t.Fatalf("processing failed: %s", rec.Error)
	}
	if string(emb.got) != string(preview) {
		t.Error("embedding input must be the embedded preview bytes when available")
	}
	if len(rec.Embedding) != 4 {
		t.Errorf("embedding length = %d; want 4", len(rec.Embedding))
	}
}

func TestEmbeddingFallsBackToEncodedRaster(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "x.jpg", 24, 24)

	emb := &fakeEmbedder{enabled: true, dim: 2, vec: []float32{0.5, 0.5}}
	p := newTestPipeline()
	p.embedder = emb

	rec := p.ProcessPhoto(context.Background(), path, "x.jpg", "")
	if !rec.Success {
		t.Fatalf("processing failed: %s", rec.Error)
	}
	if emb.gotLen != 1 {
		t.Fatalf("embedder received %d images; want 1", emb.gotLen)
	}
	if len(emb.got) < 2 || emb.got[0] != 0xFF || emb.got[1] != 0xD8 {
		t.Error("fallback embedding input must be a JPEG encoding of the raster")
	}
}

func TestEmbeddingUnavailabilityIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "x.jpg", 20, 20)

	p := newTestPipeline()
	p.embedder = &fakeEmbedder{enabled: true, dim: 4, err: errors.New("connection refused")}

	rec := p.ProcessPhoto(context.Background(), path, "x.jpg", "")
	if !rec.Success {
		t.Fatalf("embedding outage must not fail the item: %s", rec.Error)
	}
	if rec.Embedding != nil {
		t.Error("no embedding expected when the provider is down")
	}
}

type panicHasher struct{}

func (panicHasher) Perceptual(*image.NRGBA) (string, error) { panic("boom") }
func (panicHasher) Average(*image.NRGBA) (string, error)    { return "", nil }

func TestPanicIsRecoveredIntoFailedRecord(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeJPEG(t, dir, "a.jpg", 20, 20),
		writeJPEG(t, dir, "b.jpg", 20, 20),
	}
	rels := []string{"a.jpg", "b.jpg"}

	p := &Pipeline{hasher: panicHasher{}, workers: 1}
	results := p.ProcessBatch(context.Background(), files, rels, "")

	for i, rec := range results {
		if rec.Success {
			t.Errorf("results[%d] must fail after a panic", i)
		}
		if rec.Error == "" {
			t.Errorf("results[%d] must carry an error message", i)
		}
		if rec.Path != rels[i] {
			t.Errorf("results[%d].Path = %q; want %q so the failure is attributable", i, rec.Path, rels[i])
		}
		if rec.Name == "" {
			t.Errorf("results[%d] must keep the file name", i)
		}
	}
}

func TestMissingFileFailsCleanly(t *testing.T) {
	p := newTestPipeline()
	rec := p.ProcessPhoto(context.Background(), "/nonexistent/x.jpg", "x.jpg", "")
	if rec.Success {
		t.Fatal("missing file must not succeed")
	}
	if rec.Error == "" {
		t.Fatal("missing file must carry an error")
	}
}

func TestHighEfficiencyUsesPreviewDecoder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "photo.heic", "heif container")

	preview := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	p := newTestPipeline()
	p.decodeHEIF = func(string) (*image.NRGBA, []byte, error) {
		return image.NewNRGBA(image.Rect(0, 0, 50, 40)), preview, nil
	}

	rec := p.ProcessPhoto(context.Background(), path, "photo.heic", "")
	if !rec.Success {
		t.Fatalf("processing failed: %s", rec.Error)
	}
	if *rec.Width != 50 || *rec.Height != 40 {
		t.Errorf("dimensions = %dx%d; want 50x40", *rec.Width, *rec.Height)
	}
	if rec.MimeType != "image/heic" {
		t.Errorf("mime_type = %q; want image/heic", rec.MimeType)
	}
	if rec.IsRaw || rec.RawStatus != "" {
		t.Error("high-efficiency files must not carry raw fields")
	}
}
