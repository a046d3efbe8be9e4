package transport

import (
	"html/template"
	"strconv"

	"github.com/anime-shed/label-inspector-go/pkg/models"
)

var viewFuncs = template.FuncMap{
	"rating": func(r *models.Rating) string {
		if r == nil {
			return "n/a"
		}
		return strconv.FormatFloat(r.Value(), 'f', -1, 64) + "/10"
	},
	"hazardClass": func(level string) string {
		switch level {
		case "Low", "low":
			return "hazard-low"
		case "High", "high":
			return "hazard-high"
		default:
			return "hazard-medium"
		}
	},
}
