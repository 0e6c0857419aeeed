package predict

import "heart-risk-dashboard/internal/schema"

// Request is the body posted to the prediction endpoint.
type Request struct {
	Features schema.Values `json:"features"`
}

// Response is the part of the backend's answer the dashboard uses. The
// backend also returns a base64 explanation plot which is not decoded.
type Response struct {
	Prob   float64 `json:"prob"`
	IsRisk bool    `json:"is_risk"`
}

// Image is one of the static diagnostic plots served by the backend.
type Image struct {
	Name string `json:"name"`
	Alt  string `json:"alt"`
	URL  string `json:"url"`
}

// responseKeys are the response properties checked one by one when a body
// is rejected.
var responseKeys = []string{"prob", "is_risk"}

var responseSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"prob", "is_risk"},
	"properties": map[string]interface{}{
		"prob":    map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
		"is_risk": map[string]interface{}{"type": "boolean"},
	},
}

// GalleryImages are the diagnostic plots, in display order.
var GalleryImages = []string{
	"shap_bar.png",
	"shap_summary.png",
	"conf_matrix.png",
	"cv_vs_test_accuracy.png",
	"roc_comparison.png",
}
