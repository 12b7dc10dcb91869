package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a localization job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses along the state machine. Terminal states share the
// highest rank so neither can transition into the other.
func (s JobStatus) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. A job's status never moves backward and never leaves a
// terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// TargetStatus is the outcome of a single target within a job.
type TargetStatus string

const (
	TargetCompleted TargetStatus = "completed"
	TargetFailed    TargetStatus = "failed"
)

// Language is a supported target language for localization.
type Language string

const (
	LangHindi              Language = "hindi"
	LangJapanese           Language = "japanese"
	LangKorean             Language = "korean"
	LangGerman             Language = "german"
	LangFrench             Language = "french"
	LangSpanish            Language = "spanish"
	LangItalian            Language = "italian"
	LangPortuguese         Language = "portuguese"
	LangChineseSimplified  Language = "chinese_simplified"
	LangChineseTraditional Language = "chinese_traditional"
	LangArabic             Language = "arabic"
	LangRussian            Language = "russian"
	LangThai               Language = "thai"
	LangVietnamese         Language = "vietnamese"
	LangIndonesian         Language = "indonesian"
)

// SupportedLanguages lists every language accepted by the API.
var SupportedLanguages = []Language{
	LangHindi, LangJapanese, LangKorean, LangGerman, LangFrench,
	LangSpanish, LangItalian, LangPortuguese, LangChineseSimplified,
	LangChineseTraditional, LangArabic, LangRussian, LangThai,
	LangVietnamese, LangIndonesian,
}

// IsValid checks if the language is supported.
func (l Language) IsValid() bool {
	for _, s := range SupportedLanguages {
		if l == s {
			return true
		}
	}
	return false
}

// Market is a target market used for cultural adaptation.
type Market string

const (
	MarketIndia      Market = "india"
	MarketJapan      Market = "japan"
	MarketSouthKorea Market = "south_korea"
	MarketGermany    Market = "germany"
	MarketFrance     Market = "france"
	MarketSpain      Market = "spain"
	MarketItaly      Market = "italy"
	MarketBrazil     Market = "brazil"
	MarketChina      Market = "china"
	MarketTaiwan     Market = "taiwan"
	MarketMiddleEast Market = "middle_east"
	MarketRussia     Market = "russia"
	MarketThailand   Market = "thailand"
	MarketVietnam    Market = "vietnam"
	MarketIndonesia  Market = "indonesia"
	MarketUSA        Market = "usa"
	MarketUK         Market = "uk"
)

// SupportedMarkets lists every market accepted by the API.
var SupportedMarkets = []Market{
	MarketIndia, MarketJapan, MarketSouthKorea, MarketGermany, MarketFrance,
	MarketSpain, MarketItaly, MarketBrazil, MarketChina, MarketTaiwan,
	MarketMiddleEast, MarketRussia, MarketThailand, MarketVietnam,
	MarketIndonesia, MarketUSA, MarketUK,
}

// IsValid checks if the market is supported. The empty market is valid;
// it means "infer from language".
func (m Market) IsValid() bool {
	if m == "" {
		return true
	}
	for _, s := range SupportedMarkets {
		if m == s {
			return true
		}
	}
	return false
}

// DefaultMarket returns the market conventionally paired with a language,
// used when a target omits the market.
func (l Language) DefaultMarket() Market {
	switch l {
	case LangHindi:
		return MarketIndia
	case LangJapanese:
		return MarketJapan
	case LangKorean:
		return MarketSouthKorea
	case LangGerman:
		return MarketGermany
	case LangFrench:
		return MarketFrance
	case LangSpanish:
		return MarketSpain
	case LangItalian:
		return MarketItaly
	case LangPortuguese:
		return MarketBrazil
	case LangChineseSimplified:
		return MarketChina
	case LangChineseTraditional:
		return MarketTaiwan
	case LangArabic:
		return MarketMiddleEast
	case LangRussian:
		return MarketRussia
	case LangThai:
		return MarketThailand
	case LangVietnamese:
		return MarketVietnam
	case LangIndonesian:
		return MarketIndonesia
	}
	return ""
}

// ValidImageSizes are the output resolutions the generator accepts.
var ValidImageSizes = []string{"1K", "2K", "4K"}

// ValidAspectRatios are the output aspect ratios the generator accepts.
var ValidAspectRatios = []string{
	"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9",
}

// Target is a single (language, market, size, aspect ratio) localization
// request within a job. Targets are immutable once the job is created and
// carry no ordering or data dependency between each other.
type Target struct {
	Language      Language `json:"language"`
	Market        Market   `json:"market,omitempty"`
	ImageSize     string   `json:"image_size,omitempty"`
	AspectRatio   string   `json:"aspect_ratio,omitempty"`
	PreserveFaces bool     `json:"preserve_faces,omitempty"`
}

// Job is one submitted request to localize a source image into multiple
// independent targets. It is mutated only by the worker that owns it and
// becomes immutable once terminal.
type Job struct {
	JobID           uuid.UUID  `json:"job_id"`
	OwnerID         string     `json:"owner_id"`
	Targets         []Target   `json:"targets"`
	SourceLanguage  string     `json:"source_language"`
	RemoveWatermark bool       `json:"remove_watermark"`
	ContentType     string     `json:"content_type"`
	SourcePayload   []byte     `json:"source_payload,omitempty"` // inline image bytes carried through the queue
	Status          JobStatus  `json:"status"`
	Result          *JobResult `json:"result,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TargetResult is the settled outcome of one target. It is owned by the
// executor that produced it until handed to the coordinator; thereafter it
// is immutable.
//
// Payload holds the generated image bytes between the generation and
// post-processing stages. It is populated by the generation step, consumed
// exactly once by cleanup/upload, and never serialized.
type TargetResult struct {
	Language         Language     `json:"language"`
	Market           Market       `json:"market,omitempty"`
	Status           TargetStatus `json:"status"`
	ImageURL         string       `json:"image_url,omitempty"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
	ErrorMessage     string       `json:"error_message,omitempty"`

	Payload []byte `json:"-"`
}

// JobResult is the aggregated, terminal outcome of a job. It enumerates
// every requested target exactly once, so partial success is explicit.
type JobResult struct {
	JobID                 uuid.UUID      `json:"job_id"`
	Status                JobStatus      `json:"status"`
	OriginalImageURL      string         `json:"original_image_url,omitempty"`
	Images                []TargetResult `json:"localized_images"`
	TotalProcessingTimeMs int64          `json:"total_processing_time_ms"`
	CreditsUsed           int            `json:"credits_used"`
	CompletedAt           time.Time      `json:"completed_at"`
}

// CompletedCount returns the number of targets that completed.
func (r *JobResult) CompletedCount() int {
	n := 0
	for _, img := range r.Images {
		if img.Status == TargetCompleted {
			n++
		}
	}
	return n
}

// StatusEvent is a point-in-time snapshot of a job's progress, published on
// the job's status channel and stored as the latest snapshot for polling.
type StatusEvent struct {
	JobID    uuid.UUID  `json:"job_id"`
	Status   JobStatus  `json:"status"`
	Progress int        `json:"progress"`
	Message  string     `json:"message,omitempty"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// SubmitResponse is returned after a successful async submission.
type SubmitResponse struct {
	JobID   uuid.UUID `json:"job_id"`
	Status  JobStatus `json:"status"`
	Channel string    `json:"channel"` // websocket path for live updates
}
