// Package storage implements the object store collaborator.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/pipeline"
)

var _ pipeline.ObjectStore = (*SupabaseStore)(nil)

// SupabaseStore uploads objects to a Supabase storage bucket over its REST
// API and returns the public object URL. Uploads are upserts, so a
// redelivered job overwrites its own outputs instead of duplicating them.
type SupabaseStore struct {
	baseURL string
	bucket  string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewSupabaseStore creates a store for the given project URL and bucket.
func NewSupabaseStore(baseURL, bucket, apiKey string, logger *zap.Logger) *SupabaseStore {
	return &SupabaseStore{
		baseURL: baseURL,
		bucket:  bucket,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Put uploads data under path and returns its public URL.
func (s *SupabaseStore) Put(ctx context.Context, path, contentType string, data []byte) (string, error) {
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("storage: upload %s: status %d: %s", path, resp.StatusCode, body)
	}

	s.logger.Debug("object uploaded",
		zap.String("path", path), zap.Int("bytes", len(data)))
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path), nil
}
