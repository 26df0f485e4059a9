package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"scribe/internal/apperr"
	"scribe/internal/storage"
	"scribe/internal/transcribe"
	"scribe/internal/utils"
)

// multipartSlack is how far a request body may exceed the file size limit
// to leave room for boundaries and text fields.
const multipartSlack = 1 << 20

// Handler serves the transcription API.
type Handler struct {
	orchestrator    *transcribe.Orchestrator
	sink            *transcribe.Sink
	stager          *storage.Stager
	defaultProvider string
	started         time.Time
}

func NewHandler(orchestrator *transcribe.Orchestrator, sink *transcribe.Sink, stager *storage.Stager, defaultProvider string) *Handler {
	return &Handler{
		orchestrator:    orchestrator,
		sink:            sink,
		stager:          stager,
		defaultProvider: defaultProvider,
		started:         time.Now(),
	}
}

// RegisterRoutes mounts the API at the root and again under /api.
func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	for _, g := range []*gin.RouterGroup{&r.RouterGroup, r.Group("/api")} {
		g.GET("/health", h.healthCheck)
		g.POST("/transcribe", h.transcribe)
		g.GET("/transcriptions", h.listTranscriptions)
		g.GET("/transcriptions/:id", h.getTranscription)
		g.DELETE("/transcriptions/:id", h.deleteTranscription)
	}
}

// healthCheck returns liveness and process uptime in seconds
func (h *Handler) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"uptime": time.Since(h.started).Seconds(),
	})
}

// transcribe handles POST /transcribe
func (h *Handler) transcribe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.stager.MaxBytes()+multipartSlack)

	form, err := c.MultipartForm()
	if err != nil {
		utils.Fail(c, formError(err))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	staged, err := h.stager.Stage(audioFile(form))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	defer staged.Release()

	provider := strings.TrimSpace(formValue(form, "provider"))
	if provider == "" {
		provider = h.defaultProvider
	}

	rec, err := h.orchestrator.Run(c.Request.Context(), staged, provider)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, gin.H{"transcription": rec})
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
		return apperr.Validation("File too large").WithCause(err)
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return apperr.Validation(`No audio provided (field "audio" or "file")`).WithCause(err)
	default:
		return apperr.Validation(err.Error()).WithCause(err)
	}
}

// audioFile returns the first upload under "audio" or "file". Field names
// are matched after trimming and lower-casing.
func audioFile(form *multipart.Form) *multipart.FileHeader {
	keys := make([]string, 0, len(form.File))
	for k := range form.File {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := strings.ToLower(strings.TrimSpace(k))
		if (name == "audio" || name == "file") && len(form.File[k]) > 0 {
			return form.File[k][0]
		}
	}
	return nil
}

func formValue(form *multipart.Form, key string) string {
	for k, v := range form.Value {
		if strings.EqualFold(strings.TrimSpace(k), key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
