package domain

// MaxTargetsPerRequest bounds the fan-out of a single job.
const MaxTargetsPerRequest = 10

// SupportedContentTypes are the image formats accepted for upload.
var SupportedContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// SubmitRequest is a validated localization submission.
type SubmitRequest struct {
	OwnerID         string
	Targets         []Target
	SourceLanguage  string
	RemoveWatermark bool
	ContentType     string
	Image           []byte
}

// Validate checks the request against the submission rules. maxImageBytes
// bounds the upload size.
func (r *SubmitRequest) Validate(maxImageBytes int) error {
	if len(r.Targets) == 0 {
		return ErrNoTargets
	}
	if len(r.Targets) > MaxTargetsPerRequest {
		return ErrTooManyTargets
	}
	for _, t := range r.Targets {
		if !t.Language.IsValid() {
			return ErrInvalidLanguage
		}
		if !t.Market.IsValid() {
			return ErrInvalidMarket
		}
		if t.ImageSize != "" && !contains(ValidImageSizes, t.ImageSize) {
			return ErrInvalidImageSize
		}
		if t.AspectRatio != "" && !contains(ValidAspectRatios, t.AspectRatio) {
			return ErrInvalidAspectRatio
		}
	}
	if !SupportedContentTypes[r.ContentType] {
		return ErrUnsupportedFormat
	}
	if len(r.Image) == 0 {
		return ErrEmptyImage
	}
	if maxImageBytes > 0 && len(r.Image) > maxImageBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
