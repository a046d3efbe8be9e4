package transport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/label-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/label-inspector-go/internal/errors"
	"github.com/anime-shed/label-inspector-go/internal/logger"
	"github.com/anime-shed/label-inspector-go/pkg/models"
)

// resultView is the data behind result.html and detail.html.
type resultView struct {
	ImagePath     string
	ExtractedText string
	Analysis      *models.IngredientAnalysis
	FinalURL      string
}

func (h *handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"maxUploadMB": h.cfg.MaxUploadSize / (1024 * 1024)})
}

// inspectPage runs the full pipeline and renders tmpl, or the error view.
func (h *handler) inspectPage(tmpl string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := h.requestContext(c)
		defer cancel()

		src, _, err := sourceFromRequest(c)
		if err != nil {
			h.renderError(c, err)
			return
		}

		report, err := h.svc.Inspect(ctx, c.GetString(ctxRequestID), src)
		if err != nil {
			h.renderError(c, err)
			return
		}

		view := resultView{
			ImagePath:     report.ImagePath,
			ExtractedText: report.ExtractedText,
			Analysis:      report.Analysis,
		}
		if tmpl == "detail.html" {
			view.FinalURL = finalURL(report.ImagePath, report.Analysis)
		}
		c.HTML(http.StatusOK, tmpl, view)
	}
}

// final rebuilds the detail view from state carried in the query string.
func (h *handler) final(c *gin.Context) {
	imagePath := c.Query("imagePath")
	if !h.isPublicImagePath(imagePath) {
		h.renderError(c, apperrors.NewRenderFailureError("Invalid image reference", nil))
		return
	}

	raw := c.Query("analysis")
	if strings.TrimSpace(raw) == "" {
		h.renderError(c, apperrors.NewRenderFailureError("Missing analysis data", nil))
		return
	}
	var analysis models.IngredientAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		h.renderError(c, apperrors.NewRenderFailureError("Invalid analysis data", err))
		return
	}
	if analysis.SafetyRating != nil {
		analysis.RatingExplanation = analyzer.RatingExplanation(analysis.SafetyRating.Value())
	}

	c.HTML(http.StatusOK, "detail.html", resultView{
		ImagePath: imagePath,
		Analysis:  &analysis,
	})
}

// isPublicImagePath accepts only a file directly under the public upload prefix.
func (h *handler) isPublicImagePath(p string) bool {
	if p == "" || strings.Contains(p, "..") || strings.ContainsAny(p, "\\?#") {
		return false
	}
	dir, file := path.Split(p)
	return strings.TrimSuffix(dir, "/") == h.cfg.PublicPrefix && file != ""
}

func finalURL(imagePath string, analysis *models.IngredientAnalysis) string {
	data, err := json.Marshal(analysis)
	if err != nil {
		logger.WithError(err).Warn("Could not encode analysis for the final view link")
		return ""
	}
	q := url.Values{}
	q.Set("imagePath", imagePath)
	q.Set("analysis", string(data))
	return "/final?" + q.Encode()
}

func (h *handler) renderError(c *gin.Context, err error) {
	code := apperrors.GetStatusCode(err)
	logger.ForRequest(c.GetString(ctxRequestID)).WithError(err).WithFields(logrus.Fields{
		"path":        c.Request.URL.Path,
		"status_code": code,
		"details":     apperrors.DetailsOf(err),
	}).Error("Rendering error view")
	c.HTML(code, "error.html", gin.H{"message": apperrors.UserMessage(err)})
	c.Abort()
}
