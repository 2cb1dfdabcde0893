// Package alerts serves the alert and alert history endpoints.
package alerts

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/reportwatch/internal/alerting"
	"github.com/good-yellow-bee/reportwatch/internal/api/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
	"github.com/good-yellow-bee/reportwatch/internal/events"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

// Runner executes an alert on demand.
type Runner interface {
	RunAlert(ctx context.Context, id string) (*models.AlertHistory, error)
}

// Handler handles alert endpoints.
type Handler struct {
	alerts  storage.AlertRepository
	history storage.AlertHistoryRepository
	catalog alerting.Catalog
	runner  Runner
	events  events.Publisher
}

// NewHandler creates an alerts handler. A nil publisher disables events.
func NewHandler(store storage.Storage, catalog alerting.Catalog, runner Runner, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Handler{
		alerts:  store.Alerts(),
		history: store.AlertHistory(),
		catalog: catalog,
		runner:  runner,
		events:  pub,
	}
}

// ValidateResponse is returned by Validate when the step passes.
type ValidateResponse struct {
	Step  alerting.Step `json:"step"`
	Valid bool          `json:"valid"`
	Next  alerting.Step `json:"next,omitempty"`
}

// ParseFilter reads q, status, active, sort and dir from the query string.
// Unknown statuses are ignored.
func ParseFilter(r *http.Request) alerting.Filter {
	q := r.URL.Query()
	f := alerting.Filter{Search: q.Get("q")}

	for _, raw := range q["status"] {
		for _, s := range strings.Split(raw, ",") {
			if st, ok := models.ParseAlertStatus(strings.TrimSpace(s)); ok {
				f.Statuses = append(f.Statuses, st)
			}
		}
	}
	if v, err := strconv.ParseBool(q.Get("active")); err == nil {
		f.Active = &v
	}
	if key, ok := alerting.ParseSortKey(q.Get("sort")); ok {
		f.SortBy = key
	}
	f.SortDir = alerting.SortAsc
	if strings.EqualFold(q.Get("dir"), string(alerting.SortDesc)) {
		f.SortDir = alerting.SortDesc
	}
	return f
}

// List returns all alerts matching the query filter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.alerts.List(r.Context())
	if err != nil {
		respond.Internal(w, "list alerts", err)
		return
	}
	respond.OK(w, alerting.Apply(all, ParseFilter(r)))
}

// Create validates the full form and stores a new alert.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var form alerting.AlertForm
	if err := respond.Decode(w, r, &form); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	if errs := form.Validate(h.catalog); len(errs) > 0 {
		respond.Fail(w, respond.Validation("validation failed", errs))
		return
	}

	alert := form.ToAlert(h.catalog, middleware.GetUsername(r.Context()))
	alert.ID = uuid.New().String()
	if err := h.alerts.Create(r.Context(), alert); err != nil {
		respond.Internal(w, "create alert", err)
		return
	}

	log.Printf("alert created: %s (%s) by %s", alert.Name, alert.ID, alert.CreatedBy)
	h.publish(r.Context(), events.SubjectAlertCreated, alert)
	respond.Created(w, alert)
}

// Validate checks one wizard step, given by ?step=, defaulting to review.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	step := alerting.StepReview
	if s := r.URL.Query().Get("step"); s != "" {
		var ok bool
		if step, ok = alerting.ParseStep(s); !ok {
			respond.Fail(w, respond.BadRequest("unknown step "+s))
			return
		}
	}

	var form alerting.AlertForm
	if err := respond.Decode(w, r, &form); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	if errs := form.ValidateStep(step, h.catalog); len(errs) > 0 {
		respond.Fail(w, respond.Validation("validation failed", errs))
		return
	}

	resp := ValidateResponse{Step: step, Valid: true}
	if next := step.Next(); next != step {
		resp.Next = next
	}
	respond.OK(w, resp)
}

// GetByID returns one alert.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.load(w, r)
	if !ok {
		return
	}
	respond.OK(w, alert)
}

// Update replaces the editable fields of an alert. Counters are kept.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.load(w, r)
	if !ok {
		return
	}

	var form alerting.AlertForm
	if err := respond.Decode(w, r, &form); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	if errs := form.Validate(h.catalog); len(errs) > 0 {
		respond.Fail(w, respond.Validation("validation failed", errs))
		return
	}

	form.ApplyTo(alert, h.catalog)
	if err := h.alerts.Update(r.Context(), alert); err != nil {
		respond.Internal(w, "update alert", err)
		return
	}

	h.publish(r.Context(), events.SubjectAlertUpdated, alert)
	respond.OK(w, alert)
}

// Delete removes an alert and its history.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.alerts.Delete(r.Context(), alert.ID); err != nil {
		respond.Internal(w, "delete alert", err)
		return
	}

	log.Printf("alert deleted: %s (%s) by %s", alert.Name, alert.ID, middleware.GetUsername(r.Context()))
	h.publish(r.Context(), events.SubjectAlertDeleted, map[string]string{"id": alert.ID, "name": alert.Name})
	respond.NoContent(w)
}

// Toggle flips the active flag. Deactivating sets status inactive,
// reactivating sets pending until the next run.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.alerts.SetActive(r.Context(), alert.ID, !alert.Active); err != nil {
		respond.Internal(w, "toggle alert", err)
		return
	}
	alert, err := h.alerts.GetByID(r.Context(), alert.ID)
	if err != nil {
		respond.Internal(w, "get alert", err)
		return
	}
	if alert == nil {
		respond.Fail(w, respond.NotFound("alert not found"))
		return
	}

	h.publish(r.Context(), events.SubjectAlertUpdated, alert)
	respond.OK(w, alert)
}

// Run executes the alert now and returns the history row.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.RunAlert(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, alerting.ErrAlertNotFound):
		respond.Fail(w, respond.NotFound("alert not found"))
	case errors.Is(err, alerting.ErrAlertInactive):
		respond.Fail(w, respond.Conflict("alert is inactive"))
	case err != nil:
		respond.Internal(w, "run alert", err)
	default:
		respond.OK(w, run)
	}
}

// History lists the executions of one alert.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.load(w, r)
	if !ok {
		return
	}
	h.listHistory(w, r, models.HistoryFilter{AlertID: alert.ID})
}

// HistoryList lists executions of every alert, filtered by alert_id and
// status.
func (h *Handler) HistoryList(w http.ResponseWriter, r *http.Request) {
	filter := models.HistoryFilter{AlertID: r.URL.Query().Get("alert_id")}
	if s := r.URL.Query().Get("status"); s != "" {
		st, ok := models.ParseAlertStatus(s)
		if !ok {
			respond.Fail(w, respond.BadRequest("unknown status "+s))
			return
		}
		filter.Status = st
	}
	h.listHistory(w, r, filter)
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request, filter models.HistoryFilter) {
	page, perPage := respond.ParsePage(r)
	items, total, err := h.history.List(r.Context(), filter, perPage, (page-1)*perPage)
	if err != nil {
		respond.Internal(w, "list alert history", err)
		return
	}
	if items == nil {
		items = []*models.AlertHistory{}
	}
	respond.OK(w, respond.NewPage(items, total, page, perPage))
}

// load fetches the {id} alert, writing 404 or 500 when it cannot.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Alert, bool) {
	alert, err := h.alerts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Internal(w, "get alert", err)
		return nil, false
	}
	if alert == nil {
		respond.Fail(w, respond.NotFound("alert not found"))
		return nil, false
	}
	return alert, true
}

func (h *Handler) publish(ctx context.Context, subject string, payload any) {
	if err := h.events.Publish(ctx, subject, payload); err != nil {
		log.Printf("publish %s error: %v", subject, err)
	}
}
