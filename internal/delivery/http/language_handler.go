package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

// LanguageHandler serves the supported localization options.
type LanguageHandler struct{}

// NewLanguageHandler creates a new LanguageHandler.
func NewLanguageHandler() *LanguageHandler {
	return &LanguageHandler{}
}

// languageInfo is the wire shape of one supported language.
type languageInfo struct {
	Language      domain.Language `json:"language"`
	DefaultMarket domain.Market   `json:"default_market"`
}

// List handles GET /api/v1/languages
func (h *LanguageHandler) List(c *gin.Context) {
	languages := make([]languageInfo, 0, len(domain.SupportedLanguages))
	for _, lang := range domain.SupportedLanguages {
		languages = append(languages, languageInfo{
			Language:      lang,
			DefaultMarket: lang.DefaultMarket(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"languages":     languages,
		"markets":       domain.SupportedMarkets,
		"image_sizes":   domain.ValidImageSizes,
		"aspect_ratios": domain.ValidAspectRatios,
	})
}
