package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/alerting"
	apialerts "github.com/good-yellow-bee/reportwatch/internal/api/alerts"
	"github.com/good-yellow-bee/reportwatch/internal/events"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

const detailHistoryRows = 20

// ShowAlerts renders the filterable alert list. The query string uses the
// same parameters as the alerts API.
func (h *Handler) ShowAlerts(w http.ResponseWriter, r *http.Request) {
	all, err := h.alerts.List(r.Context())
	if err != nil {
		h.serverError(w, "list alerts", err)
		return
	}
	filter := apialerts.ParseFilter(r)

	view := pages.AlertListView{
		Alerts:    alerting.Apply(all, filter),
		Search:    filter.Search,
		Statuses:  filter.Statuses,
		Sort:      string(filter.SortBy),
		Dir:       string(filter.SortDir),
		CanManage: can(r, models.PermissionManageAlerts),
	}
	if filter.Active != nil {
		view.Active = strconv.FormatBool(*filter.Active)
	}
	h.render(w, r, http.StatusOK, pages.AlertList(h.base(r), view))
}

func (h *Handler) ShowAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}
	rows, _, err := h.history.List(r.Context(), models.HistoryFilter{AlertID: alert.ID}, detailHistoryRows, 0)
	if err != nil {
		h.serverError(w, "list alert history", err)
		return
	}
	h.render(w, r, http.StatusOK, pages.AlertDetail(h.base(r), pages.AlertDetailView{
		Alert:     alert,
		History:   rows,
		CanManage: can(r, models.PermissionManageAlerts),
	}))
}

func (h *Handler) ToggleAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}
	if err := h.alerts.SetActive(r.Context(), alert.ID, !alert.Active); err != nil {
		h.serverError(w, "toggle alert", err)
		return
	}
	if alert, ok = h.loadAlert(w, r); !ok {
		return
	}
	h.publish(r.Context(), events.SubjectAlertUpdated, alert)

	msg := alert.Name + " paused"
	if alert.Active {
		msg = alert.Name + " resumed"
	}
	h.redirect(w, r, "/alerts", session.FlashSuccess, msg)
}

func (h *Handler) RunAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.runner.RunAlert(r.Context(), id)
	switch {
	case errors.Is(err, alerting.ErrAlertNotFound):
		h.NotFound(w, r)
	case errors.Is(err, alerting.ErrAlertInactive):
		h.redirect(w, r, "/alerts/"+id, session.FlashError, "Resume the alert before running it")
	case err != nil:
		log.Printf("run alert error: %v", err)
		h.redirect(w, r, "/alerts/"+id, session.FlashError, "Run failed")
	default:
		kind := session.FlashSuccess
		if run.Status == models.AlertStatusFailed {
			kind = session.FlashError
		}
		h.redirect(w, r, "/alerts/"+id, kind, "Run finished: "+run.Message)
	}
}

func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}
	if err := h.alerts.Delete(r.Context(), alert.ID); err != nil {
		h.serverError(w, "delete alert", err)
		return
	}
	log.Printf("alert deleted: %s (%s) by %s", alert.Name, alert.ID, currentUser(r).Username)
	h.publish(r.Context(), events.SubjectAlertDeleted, map[string]string{"id": alert.ID, "name": alert.Name})
	h.redirect(w, r, "/alerts", session.FlashSuccess, alert.Name+" deleted")
}

// loadAlert fetches the {id} alert, rendering 404 or 500 when it cannot.
func (h *Handler) loadAlert(w http.ResponseWriter, r *http.Request) (*models.Alert, bool) {
	alert, err := h.alerts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serverError(w, "get alert", err)
		return nil, false
	}
	if alert == nil {
		h.NotFound(w, r)
		return nil, false
	}
	return alert, true
}
