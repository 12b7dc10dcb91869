// Package watermark implements the cleanup collaborator as a client of the
// watermark-removal inference service.
package watermark

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

var _ pipeline.Cleaner = (*Client)(nil)

// Client posts image bytes to the inference sidecar and returns the cleaned
// image. Callers treat any failure as best-effort and keep the input, so
// this client only reports errors, it never retries.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a cleanup client for the sidecar at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Clean submits the image for watermark removal and returns the processed
// bytes.
func (c *Client) Clean(ctx context.Context, image []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/remove-watermark", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("watermark: build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watermark: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("watermark: status %d: %s", resp.StatusCode, body)
	}

	cleaned, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("watermark: read response: %w", err)
	}
	c.logger.Debug("watermark removed", zap.Int("bytes", len(cleaned)))
	return cleaned, nil
}
