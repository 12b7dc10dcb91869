package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/usecase"
)

const defaultOwnerID = "anonymous"

// LocalizationHandler handles submission and lookup of localization jobs.
type LocalizationHandler struct {
	submitUC *usecase.SubmitJobUsecase
	syncUC   *usecase.LocalizeSyncUsecase
	getJobUC *usecase.GetJobUsecase
	statusUC *usecase.GetStatusUsecase
	logger   *zap.Logger
}

// NewLocalizationHandler creates a new LocalizationHandler.
func NewLocalizationHandler(
	submitUC *usecase.SubmitJobUsecase,
	syncUC *usecase.LocalizeSyncUsecase,
	getJobUC *usecase.GetJobUsecase,
	statusUC *usecase.GetStatusUsecase,
	logger *zap.Logger,
) *LocalizationHandler {
	return &LocalizationHandler{
		submitUC: submitUC,
		syncUC:   syncUC,
		getJobUC: getJobUC,
		statusUC: statusUC,
		logger:   logger,
	}
}

// SubmitAsync handles POST /api/v1/localize/async. The job is queued and the
// response carries the job ID plus the websocket channel for live updates.
func (h *LocalizationHandler) SubmitAsync(c *gin.Context) {
	req, ok := h.parseSubmitRequest(c)
	if !ok {
		return
	}

	resp, err := h.submitUC.Execute(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// Localize handles POST /api/v1/localize. The pipeline runs inside the
// request and the aggregated result is returned in one round trip.
func (h *LocalizationHandler) Localize(c *gin.Context) {
	req, ok := h.parseSubmitRequest(c)
	if !ok {
		return
	}

	result, err := h.syncUC.Execute(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *LocalizationHandler) GetJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.getJobUC.Execute(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetStatus handles GET /api/v1/jobs/:id/status. It serves the latest
// progress snapshot; snapshots expire, so a 404 here does not mean the job
// record itself is gone.
func (h *LocalizationHandler) GetStatus(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	evt, err := h.statusUC.Execute(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No status snapshot for job"})
		return
	}

	c.JSON(http.StatusOK, evt)
}

// parseSubmitRequest reads the multipart submission form. On failure it
// writes the error response itself and returns ok=false.
func (h *LocalizationHandler) parseSubmitRequest(c *gin.Context) (*domain.SubmitRequest, bool) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return nil, false
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return nil, false
	}

	var targets []domain.Target
	targetsJSON := c.PostForm("targets")
	if targetsJSON != "" {
		if err := json.Unmarshal([]byte(targetsJSON), &targets); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "targets must be a JSON array"})
			return nil, false
		}
	}

	ownerID := c.GetHeader("X-Owner-ID")
	if ownerID == "" {
		ownerID = c.PostForm("owner_id")
	}
	if ownerID == "" {
		ownerID = defaultOwnerID
	}

	return &domain.SubmitRequest{
		OwnerID:         ownerID,
		Targets:         targets,
		SourceLanguage:  c.DefaultPostForm("source_language", "english"),
		RemoveWatermark: c.PostForm("remove_watermark") == "true",
		ContentType:     header.Header.Get("Content-Type"),
		Image:           image,
	}, true
}

// writeError maps domain errors to HTTP status codes.
func (h *LocalizationHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoTargets),
		errors.Is(err, domain.ErrTooManyTargets),
		errors.Is(err, domain.ErrInvalidLanguage),
		errors.Is(err, domain.ErrInvalidMarket),
		errors.Is(err, domain.ErrInvalidImageSize),
		errors.Is(err, domain.ErrInvalidAspectRatio),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrEmptyImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPublishFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return uuid.Nil, false
	}
	return id, true
}
