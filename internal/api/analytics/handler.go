// Package analytics serves the alert summary.
package analytics

import (
	"context"
	"net/http"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/analytics"
	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
)

// Summarizer builds the alert summary.
type Summarizer interface {
	Summary(ctx context.Context, now time.Time) (*analytics.Summary, error)
}

// Handler handles analytics endpoints.
type Handler struct {
	svc Summarizer
	now func() time.Time
}

// NewHandler creates an analytics handler.
func NewHandler(svc Summarizer) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

// Summary returns totals, the per-status distribution and the daily series.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context(), h.now())
	if err != nil {
		respond.Internal(w, "analytics summary", err)
		return
	}
	respond.OK(w, sum)
}
