// Package embedding talks to the external embedding server that turns
// encoded images into fixed-length semantic vectors. The service is
// constructed once at startup and passed into the pipeline; there is no
// process-global model state.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"photoingest/config"
	"photoingest/logging"
)

// Service computes image embeddings through the embedding server.
type Service struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewService creates the embedding service. An empty base URL yields a
// disabled service: embeddings are skipped, never an item failure.
func NewService(cfg config.EmbeddingConfig) *Service {
	return &Service{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		dim:     cfg.Dim,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Enabled reports whether an embedding server is configured.
func (s *Service) Enabled() bool {
	return s.baseURL != ""
}

// Dim returns the expected embedding vector length.
func (s *Service) Dim() int {
	return s.dim
}

// batchResponse is the embedding server's answer to a batch request.
// A null entry marks an image the server could not embed.
type batchResponse struct {
	Dim        int         `json:"dim"`
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
}

// EmbedImages computes embeddings for the encoded images in one batched
// call. The result has the same length and order as the input; entries are
// nil for images the server rejected or whose vectors had an unexpected
// length. A transport-level failure is returned as an error so callers can
// treat the provider as unavailable.
func (s *Service) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	if !s.Enabled() {
		return nil, errors.New("embedding service is not configured")
	}
	if len(images) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, img := range images {
		part, err := writer.CreateFormFile("files", fmt.Sprintf("image_%d.jpg", i))
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(img); err != nil {
			return nil, fmt.Errorf("failed to write image data: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embed/batch", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server error (status %d): %s", resp.StatusCode, string(body))
	}

	var br batchResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(br.Embeddings) != len(images) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d images", len(br.Embeddings), len(images))
	}

	out := make([][]float32, len(images))
	for i, vec := range br.Embeddings {
		if vec == nil {
			continue
		}
		if len(vec) != s.dim {
			logging.Warnf("discarding embedding with length %d (expected %d)", len(vec), s.dim)
			continue
		}
		out[i] = vec
	}
	return out, nil
}

// EmbedImage is the batch-of-one convenience wrapper.
func (s *Service) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	vecs, err := s.EmbedImages(ctx, [][]byte{image})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
