package handlers

import (
	"net/http"
	"strconv"

	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

const (
	monitorRecentRuns = 10
	historyPerPage    = 25
)

// ShowMonitor renders the state of every alert and the latest runs.
func (h *Handler) ShowMonitor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alerts, err := h.alerts.List(ctx)
	if err != nil {
		h.serverError(w, "list alerts", err)
		return
	}
	recent, _, err := h.history.List(ctx, models.HistoryFilter{}, monitorRecentRuns, 0)
	if err != nil {
		h.serverError(w, "list alert history", err)
		return
	}
	h.render(w, r, http.StatusOK, pages.Monitor(h.base(r), pages.MonitorView{
		Alerts: alerts,
		Recent: recent,
		Now:    h.now(),
	}))
}

// ShowHistory renders the paginated execution history. Unknown statuses are
// ignored.
func (h *Handler) ShowHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := models.HistoryFilter{AlertID: q.Get("alert_id")}
	if st, ok := models.ParseAlertStatus(q.Get("status")); ok {
		filter.Status = st
	}
	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	rows, total, err := h.history.List(ctx, filter, historyPerPage, (page-1)*historyPerPage)
	if err != nil {
		h.serverError(w, "list alert history", err)
		return
	}
	alerts, err := h.alerts.List(ctx)
	if err != nil {
		h.serverError(w, "list alerts", err)
		return
	}

	h.render(w, r, http.StatusOK, pages.History(h.base(r), pages.HistoryView{
		Rows:       rows,
		Alerts:     alerts,
		AlertID:    filter.AlertID,
		Status:     string(filter.Status),
		Page:       page,
		TotalPages: int((total + historyPerPage - 1) / historyPerPage),
		Total:      total,
	}))
}
