package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/rollcall/pkg/metrics"
)

// HealthHandler serves liveness and Prometheus metrics.
type HealthHandler struct {
	gallery func() uint64
}

// NewHealthHandler creates a new health handler. galleryVersion may be nil.
func NewHealthHandler(galleryVersion func() uint64) *HealthHandler {
	return &HealthHandler{gallery: galleryVersion}
}

type healthResponse struct {
	Status         string `json:"status"`
	GalleryVersion uint64 `json:"gallery_version"`
}

// HandleHealth handles GET /healthz.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.gallery != nil {
		resp.GalleryVersion = h.gallery()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMetrics handles GET /metrics from the service registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
