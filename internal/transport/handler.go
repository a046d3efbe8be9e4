package transport

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/label-inspector-go/internal/config"
	apperrors "github.com/anime-shed/label-inspector-go/internal/errors"
	"github.com/anime-shed/label-inspector-go/internal/ingest"
	"github.com/anime-shed/label-inspector-go/internal/logger"
	"github.com/anime-shed/label-inspector-go/internal/service"
	"github.com/anime-shed/label-inspector-go/pkg/models"
)

// Version is reported by GET /health.
var Version = "1.0.0"

//go:embed templates/*.html
var templatesFS embed.FS

// StatsFunc supplies the counters shown on /health.
type StatsFunc func() map[string]interface{}

type handler struct {
	svc   service.LabelInspectionService
	cfg   *config.Config
	stats StatsFunc
}

func NewHandler(svc service.LabelInspectionService, cfg *config.Config, stats StatsFunc) http.Handler {
	h := &handler{svc: svc, cfg: cfg, stats: stats}

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadSize
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(viewFuncs).ParseFS(templatesFS, "templates/*.html")))

	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
	)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(corsMiddleware(cfg.CORSAllowedOrigins))
	}

	upload := requestSizeLimiter(maxBodySize(cfg.MaxUploadSize))

	r.GET("/", h.index)
	r.POST("/upload", upload, h.inspectPage("result.html"))
	r.POST("/detail", upload, h.inspectPage("detail.html"))
	r.GET("/final", h.final)
	r.Static(cfg.PublicPrefix, cfg.UploadDir)

	r.GET("/health", h.healthCheck)
	api := r.Group("/api", upload)
	{
		api.POST("/analyze", h.analyzeJSON)
		api.POST("/ocr", h.ocrJSON)
	}

	return r
}

func (h *handler) healthCheck(c *gin.Context) {
	resp := models.HealthResponse{
		Status:  "available",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if h.stats != nil {
		resp.Stats = h.stats()
	}
	c.JSON(http.StatusOK, resp)
}

// requestContext bounds one pipeline run by REQUEST_TIMEOUT.
func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

// uploadPayload carries the JSON form of an upload request.
type uploadPayload struct {
	CameraImage  string `json:"cameraImage"`
	ExpectedText string `json:"expectedText"`
}

// sourceFromRequest collects the "image" file part and the "cameraImage" field.
// The ingestor decides which of them, if any, is usable.
func sourceFromRequest(c *gin.Context) (ingest.Source, string, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var p uploadPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			return ingest.Source{}, "", bodyError(err)
		}
		return ingest.Source{DataURI: p.CameraImage}, p.ExpectedText, nil
	}

	var src ingest.Source
	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		src.File = fh
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return src, "", bodyError(err)
	}
	src.DataURI = c.PostForm("cameraImage")
	return src, c.PostForm("expectedText"), nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.NewInvalidInputError("Image exceeds the upload size limit", err)
	}
	return apperrors.NewInvalidInputError("Could not read the uploaded image", err)
}

// maxBodySize leaves room for base64 inflation and multipart framing.
func maxBodySize(maxUpload int64) int64 {
	return maxUpload*4/3 + 64*1024
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func respondError(c *gin.Context, err error) {
	code := apperrors.APIStatusCode(err)
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"details":     apperrors.DetailsOf(err),
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
		"request_id":  c.GetString(ctxRequestID),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   string(apperrors.KindOf(err)),
		Message: apperrors.UserMessage(err),
	})
}
