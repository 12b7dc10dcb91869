// Package pipeline runs the per-target localization pipeline and the
// fan-out coordinator that aggregates target outcomes into a job result.
package pipeline

import (
	"context"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

// Generator produces a localized rendition of the source image for one
// target. Implementations must honor ctx cancellation; the executor imposes
// the per-target timeout.
type Generator interface {
	Generate(ctx context.Context, target domain.Target, sourceLanguage string, image []byte) ([]byte, error)
}

// Cleaner removes generation watermarks from image bytes. Cleanup is
// best-effort: callers fall back to the input bytes on any error, so a
// Cleaner failure can never fail a target.
type Cleaner interface {
	Clean(ctx context.Context, image []byte) ([]byte, error)
}

// ObjectStore persists image bytes under a path and returns a publicly
// addressable URL. Writes are idempotent per path; paths are keyed by
// (job id, target) so redelivered jobs overwrite rather than duplicate.
type ObjectStore interface {
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
}
