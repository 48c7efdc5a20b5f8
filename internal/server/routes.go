package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/skillsenselab/meet-transcriber/internal/component"
	apperrors "github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/export"
	"github.com/skillsenselab/meet-transcriber/internal/provider"
	"github.com/skillsenselab/meet-transcriber/internal/service"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
)

// submitRequest carries the processing options of a transcription request.
// They arrive as multipart form fields alongside the file part.
type submitRequest struct {
	Language       string `form:"language" binding:"omitempty,max=16"`
	MinSpeakers    int    `form:"min_speakers" binding:"omitempty,min=1,max=20"`
	MaxSpeakers    int    `form:"max_speakers" binding:"omitempty,min=1,max=20"`
	Diarize        *bool  `form:"diarize"`
	WordTimestamps *bool  `form:"word_timestamps"`
}

// downloadRequest carries the export format query parameter.
type downloadRequest struct {
	Format string `form:"format" binding:"omitempty,max=8"`
}

// Handler holds the route handlers for the transcription API.
type Handler struct {
	svc        *service.Service
	components *component.Registry
	providers  *provider.Registry[provider.Provider]
	service    string
}

// NewHandler creates the API handler.
func NewHandler(svc *service.Service, components *component.Registry, providers *provider.Registry[provider.Provider], serviceName string) *Handler {
	return &Handler{svc: svc, components: components, providers: providers, service: serviceName}
}

// Register wires the API routes onto the engine.
func (h *Handler) Register(engine *gin.Engine) {
	engine.GET("/health", h.health)

	v1 := engine.Group("/v1")
	v1.POST("/transcribe", h.submit)
	v1.GET("/transcribe/:id", h.status)
	v1.GET("/transcribe/:id/download", h.download)
}

// submit accepts a multipart audio upload and returns the created job
// record with 202 Accepted.
func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondWithError(c, bindingError(err))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondWithError(c, apperrors.MalformedInput("missing file part in multipart form"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondWithError(c, apperrors.MalformedInput("unreadable file part"))
		return
	}
	defer file.Close()

	opts := transcript.Options{
		Language:          req.Language,
		MinSpeakers:       req.MinSpeakers,
		MaxSpeakers:       req.MaxSpeakers,
		EnableDiarization: req.Diarize == nil || *req.Diarize,
		WordTimestamps:    req.WordTimestamps != nil && *req.WordTimestamps,
	}

	job, err := h.svc.Submit(c.Request.Context(), file, fileHeader.Filename, opts)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	job.FilePath = ""
	c.JSON(http.StatusAccepted, job)
}

// status returns the current job record, including the result once the job
// has completed.
func (h *Handler) status(c *gin.Context) {
	job, err := h.svc.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	job.FilePath = ""
	c.JSON(http.StatusOK, job)
}

// download streams the rendered transcript of a completed job.
func (h *Handler) download(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		RespondWithError(c, bindingError(err))
		return
	}
	format := req.Format
	if format == "" {
		format = export.FormatSRT
	}

	f, err := h.svc.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	c.Data(http.StatusOK, f.ContentType, []byte(f.Body))
}

// health reports overall service health from the component registry.
func (h *Handler) health(c *gin.Context) {
	status := component.StatusHealthy
	var components []component.Health
	if h.components != nil {
		components = h.components.HealthAll(c.Request.Context())
		for _, ch := range components {
			if ch.Status == component.StatusUnhealthy {
				status = component.StatusUnhealthy
				break
			}
			if ch.Status == component.StatusDegraded {
				status = component.StatusDegraded
			}
		}
	}

	// Provider outages are reported but do not fail the probe; jobs queued
	// while a sidecar is down fail individually with their own error codes.
	var providers map[string]bool
	if h.providers != nil {
		providers = h.providers.Availability(c.Request.Context())
	}

	httpStatus := http.StatusOK
	if status == component.StatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, gin.H{
		"status":     status,
		"service":    h.service,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
		"providers":  providers,
	})
}

// bindingError converts validator failures into MALFORMED_INPUT responses.
func bindingError(err error) error {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) && len(verr) > 0 {
		f := verr[0]
		return apperrors.MalformedInput(fmt.Sprintf("invalid field %s: failed %s constraint", f.Field(), f.Tag()))
	}
	return apperrors.MalformedInput(err.Error())
}
