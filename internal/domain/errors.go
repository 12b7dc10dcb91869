package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoTargets is returned when a submission contains no targets.
	ErrNoTargets = errors.New("at least one target is required")

	// ErrTooManyTargets is returned when a submission exceeds the target limit.
	ErrTooManyTargets = errors.New("maximum 10 targets per request")

	// ErrInvalidLanguage is returned when an unsupported language is requested.
	ErrInvalidLanguage = errors.New("invalid or unsupported target language")

	// ErrInvalidMarket is returned when an unsupported market is requested.
	ErrInvalidMarket = errors.New("invalid or unsupported target market")

	// ErrInvalidImageSize is returned when the output size is not 1K, 2K or 4K.
	ErrInvalidImageSize = errors.New("invalid image size (expected 1K, 2K or 4K)")

	// ErrInvalidAspectRatio is returned when the aspect ratio is not supported.
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")

	// ErrUnsupportedFormat is returned when the uploaded image format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported image format (expected png, jpeg or webp)")

	// ErrPayloadTooLarge is returned when the uploaded image exceeds the size limit.
	ErrPayloadTooLarge = errors.New("image exceeds maximum size")

	// ErrEmptyImage is returned when no image bytes were uploaded.
	ErrEmptyImage = errors.New("image payload cannot be empty")

	// ErrInsufficientCredits is returned when the owner cannot cover the request.
	ErrInsufficientCredits = errors.New("insufficient credits for requested targets")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to work queue")

	// ErrStatusNotFound is returned when no status snapshot exists for a job.
	ErrStatusNotFound = errors.New("no status snapshot for job")

	// ErrRetryExhausted marks a job that failed after the redelivery ceiling.
	ErrRetryExhausted = errors.New("job retries exhausted")

	// ErrInvalidTransition is returned on a backward or out-of-terminal status move.
	ErrInvalidTransition = errors.New("invalid job status transition")
)
