package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// analyzeJSON is the JSON twin of POST /upload.
func (h *handler) analyzeJSON(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	src, _, err := sourceFromRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.svc.Inspect(ctx, c.GetString(ctxRequestID), src)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ocrJSON runs ingest, normalize and OCR only, scoring against expectedText when given.
func (h *handler) ocrJSON(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	src, expected, err := sourceFromRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.svc.ExtractText(ctx, c.GetString(ctxRequestID), src, expected)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
